package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mbt1909432/artifact-sandbox/sandbox"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	version = "dev"
	commit  = "unknown"
)

// exitCodeError 使进程以远程命令的退出码退出。
type exitCodeError int

func (e exitCodeError) Error() string {
	return "exit status " + strconv.Itoa(int(e))
}

type app struct {
	baseURL       string
	timeout       time.Duration
	proxy         string
	noProxyDetect bool
	sandboxID     string
	sessionID     string
	output        string
	envFile       string
	verbose       bool
	trace         bool

	manager *sandbox.Manager
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "sandboxctl",
		Short:         "Manage remote sandboxes: lifecycle, sessions, files and commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.baseURL, "base-url", "", "sandbox service address (default $SANDBOX_BASE_URL or "+sandbox.DefaultBaseURL+")")
	flags.DurationVar(&a.timeout, "timeout", 0, "per request timeout (default $SANDBOX_TIMEOUT or 30s)")
	flags.StringVar(&a.proxy, "proxy", "", "proxy URL, e.g. http://127.0.0.1:7890")
	flags.BoolVar(&a.noProxyDetect, "no-proxy-detect", false, "do not probe local proxy ports")
	flags.StringVarP(&a.sandboxID, "sandbox", "s", "", "sandbox id")
	flags.StringVar(&a.sessionID, "session", "", "session id (default session when empty)")
	flags.StringVarP(&a.output, "output", "o", "json", "output format: json or yaml")
	flags.StringVar(&a.envFile, "env-file", "", "load environment variables from file (default .env if present)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log requests to stderr")
	flags.BoolVar(&a.trace, "trace", false, "log connection setup (DNS, dial, TLS) to stderr, implies --verbose")

	root.AddCommand(
		newCreateCmd(a),
		newDestroyCmd(a),
		newDestroyAllCmd(a),
		newExecCmd(a),
		newScriptCmd(a),
		newReadCmd(a),
		newWriteCmd(a),
		newDownloadCmd(a),
		newExistsCmd(a),
		newMkdirCmd(a),
		newRmCmd(a),
		newSessionCmd(a),
		newEnvCmd(a),
		newMountCmd(a),
		newUnmountCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.output != "json" && a.output != "yaml" {
		return fmt.Errorf("unsupported output format %q", a.output)
	}

	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	level := slog.LevelWarn
	if a.verbose || a.trace {
		level = slog.LevelDebug
	}
	cfg := &sandbox.Config{
		BaseURL:         a.baseURL,
		Timeout:         a.timeout,
		Proxy:           a.proxy,
		Logger:          slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})),
		LogRequestTrace: a.trace,
	}
	if a.noProxyDetect {
		cfg.AutoDetectProxy = sandbox.Bool(false)
	}

	m, err := sandbox.NewManager(cfg)
	if err != nil {
		return err
	}
	a.manager = m
	return nil
}

// openSandbox 返回 --sandbox 指定的沙箱，不存在时由服务端创建。
func (a *app) openSandbox(ctx context.Context) (*sandbox.Sandbox, error) {
	if a.sandboxID == "" {
		return nil, errors.New("--sandbox is required")
	}
	return a.manager.CreateOrGet(ctx, a.sandboxID, nil)
}

// openSession 返回 --session 指定的会话，未指定时返回默认会话。
func (a *app) openSession(ctx context.Context) (*sandbox.Session, error) {
	sb, err := a.openSandbox(ctx)
	if err != nil {
		return nil, err
	}
	if a.sessionID == "" || a.sessionID == sandbox.DefaultSessionID {
		return sb.DefaultSession(), nil
	}
	return sb.CreateOrGetSession(ctx, a.sessionID, nil)
}

func (a *app) print(w io.Writer, v interface{}) error {
	if a.output == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseKeyValues 解析 KEY=VALUE 形式的参数。
func parseKeyValues(args []string) (map[string]string, error) {
	vars := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid KEY=VALUE pair %q", arg)
		}
		vars[k] = v
	}
	return vars, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		// 不需要连接服务
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sandboxctl %s (commit: %s)\n", version, commit)
		},
	}
}
