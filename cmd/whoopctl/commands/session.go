package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/urfave/cli/v3"

	"github.com/whoopctl/whoopctl/internal/app"
	"github.com/whoopctl/whoopctl/internal/authflow"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "authorize whoopctl against the WHOOP API",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "auth--prompt",
				Usage: "prompt for client credentials if none are configured",
				Value: true,
			},
		},
		Action: loginAction,
	}
}

func loginAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(ctx, cmd, func(cfg *app.Config) {
		cfg.Auth.Prompt = cmd.Bool("auth--prompt")
	})
	if err != nil {
		return err
	}

	provider := application.NewCodeProvider()

	// The callback provider blocks silently until the browser redirects back;
	// give the user something to look at. The console provider does its own
	// prompting.
	if _, ok := provider.(*authflow.CallbackCodeProvider); ok {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " waiting for authorization in the browser..."
		s.Start()
		defer s.Stop()
	}

	if err := application.Login(ctx, provider); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "Logged in.")
	return nil
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "drop the persisted session",
		Action: logoutAction,
	}
}

func logoutAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(ctx, cmd)
	if err != nil {
		return err
	}

	if err := application.Logout(ctx); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "Logged out.")
	return nil
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "report whether a usable session exists",
		Action: statusAction,
	}
}

func statusAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(ctx, cmd)
	if err != nil {
		return err
	}

	if !application.Authenticated() {
		return fmt.Errorf("not authenticated, run 'whoopctl login'")
	}

	fmt.Println("authenticated")
	return nil
}
