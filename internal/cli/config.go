package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Cascade/internal/config"
	"github.com/shaiso/Cascade/internal/scanner"
)

// ErrInvalidConfig — конфигурация не прошла проверку.
var ErrInvalidConfig = errors.New("config is invalid")

// NewConfigCmd создаёт группу команд для работы с конфигурацией run.
func NewConfigCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate and render run configurations",
	}

	cmd.AddCommand(
		newConfigValidateCmd(clientFn, outputFn),
		newConfigRenderCmd(outputFn),
	)

	return cmd
}

func newConfigValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "validate URI",
		Short: "Validate a run configuration",
		Long: `Validate a run configuration and report every schema violation.

Local paths and file:// URIs are checked locally.
With --remote the URI is checked by the API server (s3:// is only available there).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			if remote {
				resp, err := clientFn().ValidateConfig(cmd.Context(), ValidateConfigRequest{URI: args[0]})
				if err != nil {
					return err
				}
				rows := make([][]string, len(resp.Issues))
				for i, issue := range resp.Issues {
					rows[i] = []string{issue.Field, issue.Message, lineString(issue.Line)}
				}
				return reportValidation(out, args[0], resp.Valid, rows, resp)
			}

			_, err := config.NewLoader(nil).Load(cmd.Context(), args[0])
			var verr *config.ValidationError
			switch {
			case err == nil:
				return reportValidation(out, args[0], true, nil, map[string]any{"valid": true})
			case errors.As(err, &verr):
				rows := make([][]string, len(verr.Issues))
				for i, issue := range verr.Issues {
					rows[i] = []string{issue.Field, issue.Message, lineString(issue.Line)}
				}
				return reportValidation(out, args[0], false, rows, map[string]any{"valid": false, "issues": verr.Issues})
			default:
				return err
			}
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Validate through the API server")

	return cmd
}

func reportValidation(out *Output, uri string, valid bool, rows [][]string, jsonData any) error {
	if valid {
		if out.jsonMode {
			out.JSON(jsonData)
		}
		out.Success(fmt.Sprintf("Config is valid: %s", uri))
		return nil
	}
	out.Print([]string{"FIELD", "MESSAGE", "LINE"}, rows, jsonData)
	return fmt.Errorf("%w: %d issue(s)", ErrInvalidConfig, len(rows))
}

func lineString(line int) string {
	if line <= 0 {
		return ""
	}
	return fmt.Sprint(line)
}

func newConfigRenderCmd(outputFn func() *Output) *cobra.Command {
	var batchDate string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the configuration the scanner would produce",
		Long: `Print the configuration the scanner would produce for a batch date.

Settings are read from CASCADE_* environment variables, the same way the orchestrator does.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := RenderConfig(cmd.Context(), scanner.SettingsFromEnv(), batchDate)
			if err != nil {
				return err
			}
			outputFn().Raw(data)
			return nil
		},
	}

	cmd.Flags().StringVar(&batchDate, "batch-date", "", "Batch date (YYYY-MM-DD, today if empty)")

	return cmd
}

// RenderConfig строит конфигурацию для batchDate и возвращает проверенный YAML.
func RenderConfig(ctx context.Context, settings scanner.Settings, batchDate string) ([]byte, error) {
	if batchDate == "" {
		batchDate = time.Now().UTC().Format(time.DateOnly)
	}
	if _, err := time.Parse(time.DateOnly, batchDate); err != nil {
		return nil, fmt.Errorf("%w: %q", scanner.ErrInvalidBatchDate, batchDate)
	}

	cfg, err := scanner.StaticBuilder{Settings: settings}.Build(ctx, batchDate)
	if err != nil {
		return nil, err
	}

	data, err := config.Encode(cfg)
	if err != nil {
		return nil, err
	}

	// Собранная конфигурация должна проходить ту же проверку, что и при загрузке
	if _, err := config.Decode(data); err != nil {
		return nil, err
	}
	return data, nil
}
