package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/whoopctl/whoopctl/internal/whoop"
)

// fetchFunc runs one authenticated data call.
type fetchFunc func(ctx context.Context, client *whoop.Client, q whoop.Query) (json.RawMessage, error)

func profileCommand() *cli.Command {
	return dataCommand("profile", "fetch the user profile",
		func(ctx context.Context, client *whoop.Client, _ whoop.Query) (json.RawMessage, error) {
			return client.Profile(ctx)
		})
}

func recoveryCommand() *cli.Command {
	return dataCommand("recovery", "fetch recovery records",
		func(ctx context.Context, client *whoop.Client, q whoop.Query) (json.RawMessage, error) {
			return client.Recovery(ctx, q)
		})
}

func sleepCommand() *cli.Command {
	return dataCommand("sleep", "fetch sleep records",
		func(ctx context.Context, client *whoop.Client, q whoop.Query) (json.RawMessage, error) {
			return client.Sleep(ctx, q)
		})
}

func workoutCommand() *cli.Command {
	return dataCommand("workout", "fetch workout records",
		func(ctx context.Context, client *whoop.Client, q whoop.Query) (json.RawMessage, error) {
			return client.Workout(ctx, q)
		})
}

func summaryCommand() *cli.Command {
	return dataCommand("summary", "fetch profile, recovery, sleep, and workout in one document",
		func(ctx context.Context, client *whoop.Client, q whoop.Query) (json.RawMessage, error) {
			return client.Summary(ctx, q)
		})
}

func dataCommand(name, usage string, fetch fetchFunc) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: []cli.Flag{
			&cli.TimestampFlag{
				Name:  "start",
				Usage: "earliest record time (RFC 3339)",
				Config: cli.TimestampConfig{
					Layouts: []string{time.RFC3339},
				},
			},
			&cli.TimestampFlag{
				Name:  "end",
				Usage: "latest record time (RFC 3339)",
				Config: cli.TimestampConfig{
					Layouts: []string{time.RFC3339},
				},
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "maximum number of records",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			application, err := setup(ctx, cmd)
			if err != nil {
				return err
			}

			q := whoop.Query{
				Start: cmd.Timestamp("start"),
				End:   cmd.Timestamp("end"),
				Limit: cmd.Int("limit"),
			}
			if q.Limit < 0 {
				return fmt.Errorf("limit must be positive")
			}

			body, err := fetch(ctx, application.Client(), q)
			if err != nil {
				return err
			}
			return printJSON(body)
		},
	}
}

// printJSON pretty-prints a response body to stdout.
func printJSON(body json.RawMessage) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		// Not JSON after all; emit verbatim rather than dropping data.
		_, werr := os.Stdout.Write(append(body, '\n'))
		return werr
	}
	return enc.Encode(v)
}
