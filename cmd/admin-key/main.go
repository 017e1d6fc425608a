package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"keyauth.backend/internal/config"
	"keyauth.backend/internal/domain/entities"
	"keyauth.backend/internal/infrastructure/datasources"
	"keyauth.backend/internal/usecases"
)

const usage = "usage: admin-key <create|list|revoke|delete> [flags]"

var errUsage = errors.New(usage)

type adminKeyRuntime interface {
	CreateKey(ctx context.Context, input *entities.CreateKeyInput) (*entities.CreateKeyResponse, error)
	ListKeys(ctx context.Context) ([]entities.KeySummary, error)
	RevokeKey(ctx context.Context, key string) error
	DeleteKey(ctx context.Context, key string) error
}

type adminKeyDeps struct {
	loadEnv func() error
	loadCfg func() *config.Config
	prepare func(cfg *config.Config) (adminKeyRuntime, io.Closer, error)
	now     func() time.Time
	out     io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func prepareRuntime(cfg *config.Config) (adminKeyRuntime, io.Closer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Store.Driver == config.StoreDriverMemory {
		log.Println("STORE_DRIVER=memory: changes will not outlive this command")
	}

	store, err := datasources.OpenKeyStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open key store: %w", err)
	}
	return usecases.NewActivationKeyUsecase(store.Repo), store, nil
}

func defaultAdminKeyDeps() adminKeyDeps {
	return adminKeyDeps{
		loadEnv: func() error { return godotenv.Load() },
		loadCfg: config.Load,
		prepare: prepareRuntime,
		now:     time.Now,
		out:     os.Stdout,
	}
}

func resolveKeyName(input string, now time.Time) string {
	if input != "" {
		return input
	}
	return fmt.Sprintf("admin-cli-%s", now.Format("20060102-150405"))
}

func runAdminKey(args []string, deps adminKeyDeps) error {
	def := defaultAdminKeyDeps()
	if deps.loadEnv == nil {
		deps.loadEnv = def.loadEnv
	}
	if deps.loadCfg == nil {
		deps.loadCfg = def.loadCfg
	}
	if deps.prepare == nil {
		deps.prepare = def.prepare
	}
	if deps.now == nil {
		deps.now = def.now
	}
	if deps.out == nil {
		deps.out = def.out
	}

	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	fs := flag.NewFlagSet("admin-key "+cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var nameFlag, typeFlag, keyFlag *string
	switch cmd {
	case "create":
		nameFlag = fs.String("name", "", "key owner name (defaults to a timestamped name)")
		typeFlag = fs.String("type", string(entities.PlanTypeMonth), "plan: day, week, month or lifetime")
	case "revoke", "delete":
		keyFlag = fs.String("key", "", "activation key (required)")
	case "list":
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if keyFlag != nil && *keyFlag == "" {
		return fmt.Errorf("--key is required")
	}

	if err := deps.loadEnv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := deps.loadCfg()
	runtime, closer, err := deps.prepare(cfg)
	if err != nil {
		return err
	}
	if closer == nil {
		closer = nopCloser{}
	}
	defer closer.Close()

	ctx := context.Background()
	switch cmd {
	case "create":
		resp, err := runtime.CreateKey(ctx, &entities.CreateKeyInput{
			Name: resolveKeyName(*nameFlag, deps.now()),
			Type: *typeFlag,
		})
		if err != nil {
			return fmt.Errorf("failed creating key: %w", err)
		}
		_, _ = fmt.Fprintln(deps.out, "Created activation key")
		_, _ = fmt.Fprintf(deps.out, "name=%s\n", resp.Name)
		_, _ = fmt.Fprintf(deps.out, "type=%s\n", resp.PlanType)
		_, _ = fmt.Fprintf(deps.out, "KEY=%s\n", resp.Key)

	case "list":
		keys, err := runtime.ListKeys(ctx)
		if err != nil {
			return fmt.Errorf("failed listing keys: %w", err)
		}
		printKeys(deps.out, keys)

	case "revoke":
		if err := runtime.RevokeKey(ctx, *keyFlag); err != nil {
			return fmt.Errorf("failed revoking key: %w", err)
		}
		_, _ = fmt.Fprintf(deps.out, "Revoked %s\n", *keyFlag)

	case "delete":
		if err := runtime.DeleteKey(ctx, *keyFlag); err != nil {
			return fmt.Errorf("failed deleting key: %w", err)
		}
		_, _ = fmt.Fprintf(deps.out, "Deleted %s\n", *keyFlag)
	}
	return nil
}

func printKeys(out io.Writer, keys []entities.KeySummary) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KEY\tNAME\tTYPE\tSTATUS\tUSES\tDEVICE")
	for _, k := range keys {
		device := "-"
		if k.DeviceID != nil {
			device = *k.DeviceID
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", k.Key, k.Name, k.PlanType, k.Status, k.Uses, device)
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(out, "total=%d\n", len(keys))
}

func main() {
	if err := runAdminKey(os.Args[1:], defaultAdminKeyDeps()); err != nil {
		log.Fatal(err)
	}
}
