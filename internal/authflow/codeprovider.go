package authflow

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// CodeProvider captures the authorization code (and returned state) after the
// user approves access in the browser. Implementations decide how the
// redirect is observed: pasted by the user or caught by a local server.
type CodeProvider interface {
	Prompt(ctx context.Context, req *AuthorizationRequest) (code, state string, err error)
}

// ConsoleCodeProvider opens the authorization URL in the browser and asks the
// user to paste the URL they were redirected to. Works with any redirect
// target, including non-loopback placeholder URLs.
type ConsoleCodeProvider struct {
	In  io.Reader
	Out io.Writer

	// OpenURL hands the authorization URL to the browser. Defaults to the
	// platform opener; a failure to open is not fatal since the URL is also
	// printed for manual use.
	OpenURL func(url string) error
}

// Compile-time check to ensure ConsoleCodeProvider implements CodeProvider
var _ CodeProvider = (*ConsoleCodeProvider)(nil)

// Prompt opens the browser, prints instructions, and parses the pasted
// redirect URL into its code and state query parameters.
func (p *ConsoleCodeProvider) Prompt(ctx context.Context, req *AuthorizationRequest) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	open := p.OpenURL
	if open == nil {
		open = openBrowser
	}

	fmt.Fprintln(p.Out, "Opening the WHOOP authorization page in your browser...")
	if err := open(req.URL); err != nil {
		fmt.Fprintln(p.Out, "Could not open a browser; visit this URL instead:")
		fmt.Fprintln(p.Out, "  "+req.URL)
	}

	fmt.Fprintln(p.Out, "\nAfter approving access you will be redirected. Paste the full redirect URL here:")
	fmt.Fprint(p.Out, "> ")

	scanner := bufio.NewScanner(p.In)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", "", fmt.Errorf("reading redirect URL: %w", err)
		}
		return "", "", fmt.Errorf("no redirect URL entered")
	}

	return parseRedirect(strings.TrimSpace(scanner.Text()))
}

// parseRedirect extracts the code and state query parameters from a pasted
// redirect URL. A bare query string ("code=...&state=...") is accepted too.
func parseRedirect(input string) (string, string, error) {
	if input == "" {
		return "", "", fmt.Errorf("no redirect URL entered")
	}

	rawQuery := input
	if strings.Contains(input, "://") {
		u, err := url.Parse(input)
		if err != nil {
			return "", "", fmt.Errorf("invalid redirect URL: %w", err)
		}
		rawQuery = u.RawQuery
	}

	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", "", fmt.Errorf("invalid redirect URL query: %w", err)
	}

	code := params.Get("code")
	if code == "" {
		return "", "", fmt.Errorf("redirect URL carries no code parameter")
	}
	return code, params.Get("state"), nil
}
