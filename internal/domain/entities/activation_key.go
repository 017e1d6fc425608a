package entities

import (
	"strings"
	"time"
)

// PlanType is the duration class of an activation key.
type PlanType string

const (
	PlanTypeDay      PlanType = "day"
	PlanTypeWeek     PlanType = "week"
	PlanTypeMonth    PlanType = "month"
	PlanTypeLifetime PlanType = "lifetime"
)

// ParsePlanType validates a raw plan name.
func ParsePlanType(raw string) (PlanType, bool) {
	switch p := PlanType(strings.TrimSpace(raw)); p {
	case PlanTypeDay, PlanTypeWeek, PlanTypeMonth, PlanTypeLifetime:
		return p, true
	default:
		return "", false
	}
}

// Duration returns how long a key of this plan stays valid after activation.
// ok is false for lifetime keys, which never expire.
func (p PlanType) Duration() (d time.Duration, ok bool) {
	switch p {
	case PlanTypeDay:
		return 24 * time.Hour, true
	case PlanTypeWeek:
		return 7 * 24 * time.Hour, true
	case PlanTypeMonth:
		return 30 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// KeyStatus is derived from the stored fields at read time and never persisted.
type KeyStatus string

const (
	KeyStatusRevoked KeyStatus = "revoked"
	KeyStatusExpired KeyStatus = "expired"
	KeyStatusActive  KeyStatus = "active"
	KeyStatusUnused  KeyStatus = "unused"
)

// DefaultDeviceName is stored when a device activates without a label.
const DefaultDeviceName = "Unknown"

// ActivationKey is a license key and its device binding.
// ActivatedAt and DeviceID are either both nil or both set.
type ActivationKey struct {
	Key         string     `json:"key"`
	Name        string     `json:"name"`
	PlanType    PlanType   `json:"type"`
	Active      bool       `json:"active"`
	Uses        int64      `json:"uses"`
	CreatedAt   time.Time  `json:"createdAt"`
	ActivatedAt *time.Time `json:"activatedAt"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	DeviceID    *string    `json:"deviceId"`
	DeviceName  *string    `json:"deviceName"`
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (k *ActivationKey) Clone() *ActivationKey {
	if k == nil {
		return nil
	}
	c := *k
	c.ActivatedAt = cloneTime(k.ActivatedAt)
	c.ExpiresAt = cloneTime(k.ExpiresAt)
	c.DeviceID = cloneString(k.DeviceID)
	c.DeviceName = cloneString(k.DeviceName)
	return &c
}

// IsActivated reports whether the key has been bound to a device.
func (k *ActivationKey) IsActivated() bool {
	return k.ActivatedAt != nil
}

// IsExpired reports whether the key's expiry lies strictly before now.
func (k *ActivationKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// Status derives the lifecycle state. Revocation wins over expiry.
func (k *ActivationKey) Status(now time.Time) KeyStatus {
	switch {
	case !k.Active:
		return KeyStatusRevoked
	case k.IsExpired(now):
		return KeyStatusExpired
	case k.IsActivated():
		return KeyStatusActive
	default:
		return KeyStatusUnused
	}
}

// BoundTo reports whether the key is bound to deviceID.
func (k *ActivationKey) BoundTo(deviceID string) bool {
	return k.DeviceID != nil && *k.DeviceID == deviceID
}

// Activate binds the key to a device and fixes its expiry. It must only be
// called on a key that has not been activated yet.
func (k *ActivationKey) Activate(deviceID, deviceName string, now time.Time) {
	activatedAt := now
	k.ActivatedAt = &activatedAt
	k.DeviceID = &deviceID

	name := strings.TrimSpace(deviceName)
	if name == "" {
		name = DefaultDeviceName
	}
	k.DeviceName = &name

	if d, ok := k.PlanType.Duration(); ok {
		expiresAt := now.Add(d)
		k.ExpiresAt = &expiresAt
	}
}

// BoundDeviceName returns the stored device label or an empty string.
func (k *ActivationKey) BoundDeviceName() string {
	if k.DeviceName == nil {
		return ""
	}
	return *k.DeviceName
}

// Summary renders the key for admin listings.
func (k *ActivationKey) Summary(now time.Time) KeySummary {
	return KeySummary{
		Key:         k.Key,
		Name:        k.Name,
		PlanType:    k.PlanType,
		Active:      k.Active,
		Uses:        k.Uses,
		CreatedAt:   k.CreatedAt,
		ActivatedAt: k.ActivatedAt,
		ExpiresAt:   k.ExpiresAt,
		DeviceID:    k.DeviceID,
		DeviceName:  k.DeviceName,
		Expired:     k.IsExpired(now),
		Status:      k.Status(now),
	}
}

// KeySummary is an ActivationKey plus its derived state.
type KeySummary struct {
	Key         string     `json:"key"`
	Name        string     `json:"name"`
	PlanType    PlanType   `json:"type"`
	Active      bool       `json:"active"`
	Uses        int64      `json:"uses"`
	CreatedAt   time.Time  `json:"createdAt"`
	ActivatedAt *time.Time `json:"activatedAt"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	DeviceID    *string    `json:"deviceId"`
	DeviceName  *string    `json:"deviceName"`
	Expired     bool       `json:"expired"`
	Status      KeyStatus  `json:"status"`
}

type CreateKeyInput struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type CreateKeyResponse struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	PlanType PlanType `json:"type"`
}

type KeyInput struct {
	Key string `json:"key"`
}

type VerifyInput struct {
	Key        string `json:"key"`
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
}

// VerifiedUser is what a device learns about its key after a successful verify.
type VerifiedUser struct {
	Name        string     `json:"name"`
	PlanType    PlanType   `json:"type"`
	Uses        int64      `json:"uses"`
	ActivatedAt *time.Time `json:"activatedAt"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	DeviceName  string     `json:"deviceName"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
