package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/vtx/internal/services"
	"github.com/desertthunder/vtx/internal/shared"
	"github.com/desertthunder/vtx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// APIGet makes an authenticated GET request and prints the body.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path, err := requireArg(cmd, "path")
	if err != nil {
		return err
	}

	r.logger.Info("GET request", "path", path)

	resp, err := r.api.Get(ctx, path)
	if err != nil {
		return err
	}
	return r.writeResponse(resp, !cmd.Bool("json"))
}

// APIPost makes an authenticated POST request with a JSON body.
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	path, err := requireArg(cmd, "path")
	if err != nil {
		return err
	}
	data := cmd.String("data")

	if data == "" {
		return fmt.Errorf("%w: --data flag is required", shared.ErrMissingArgument)
	}

	if err := shared.ValidateJSON([]byte(data)); err != nil {
		return err
	}

	r.logger.Info("POST request", "path", path)

	resp, err := r.api.Post(ctx, path, []byte(data))
	if err != nil {
		return err
	}
	return r.writeResponse(resp, true)
}

func (r *Runner) writeResponse(resp *services.APIResponse, pretty bool) error {
	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, pretty)
	}

	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}

// Backup fetches profile, watch history and channel data through the engine.
// Endpoints that fail are listed under "errors" instead of aborting the backup.
func (r *Runner) Backup(ctx context.Context, cmd *cli.Command) error {
	output := cmd.String("output")
	pretty := cmd.Bool("pretty")

	r.logger.Info("backing up account")

	progressCh := make(chan tasks.ProgressUpdate, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if output != "" {
				r.writePlain("[%d/%d] %s\n", update.Step, update.Total, update.Message)
			} else {
				r.logger.Info(update.Message, "step", update.Step, "total", update.Total)
			}
		}
	}()

	result, err := r.engine.Backup(ctx, progressCh)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	for _, e := range result.Errors {
		r.logger.Warn("endpoint failed", "endpoint", e.Endpoint, "error", e.Error)
	}

	if output == "" {
		return r.writeJSON(result.Data(), pretty)
	}

	data, err := shared.MarshalJSON(result.Data(), pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal backup: %w", err)
	}
	if err := os.WriteFile(output, data, 0600); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}

	r.logger.Info("backup saved", "file", output)
	r.writePlain("\n✓ Backup saved to %s\n", output)
	if n := len(result.Errors); n > 0 {
		r.writePlain("%d endpoints failed, see \"errors\" in the file\n", n)
	}
	return nil
}
