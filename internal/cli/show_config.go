package cli

import (
	"fmt"
	"strings"

	"github.com/perbu/presensi/internal/config"
	"gopkg.in/yaml.v3"
)

// Run executes the show-config command
func (c *ShowConfigCmd) Run(ctx *Context) error {
	masked := maskSecrets(ctx.Config)
	out, err := yaml.Marshal(masked)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	fmt.Fprintln(ctx.Out, "Effective configuration")
	fmt.Fprintln(ctx.Out, strings.Repeat("=", 60))
	fmt.Fprint(ctx.Out, string(out))
	fmt.Fprintln(ctx.Out, strings.Repeat("-", 60))

	username, password := ctx.Config.GetCredentials()
	secrets := []struct {
		name string
		set  bool
	}{
		{"checker URL", ctx.Config.GetAPIURL() != ""},
		{"checker username", username != ""},
		{"checker password", password != ""},
		{"advisory API key", ctx.Config.GetAdvisoryAPIKey() != ""},
		{"telegram token", ctx.Config.GetTelegramToken() != ""},
		{"sendgrid API key", ctx.Config.GetSendGridAPIKey() != ""},
		{"web API token", ctx.Config.GetWebAPIToken() != ""},
	}
	for _, s := range secrets {
		state := "missing"
		if s.set {
			state = "set"
		}
		fmt.Fprintf(ctx.Out, "%-18s %s\n", s.name+":", state)
	}
	fmt.Fprintf(ctx.Out, "%-18s %s\n", "database:", maskDSN(ctx.Config.Database.Driver, ctx.Config.GetDatabaseDSN()))
	return nil
}

// maskSecrets returns a copy of cfg with inline secrets replaced
func maskSecrets(cfg *config.Config) config.Config {
	m := *cfg
	m.Advisory.APIKey = mask(m.Advisory.APIKey)
	m.Telegram.Token = mask(m.Telegram.Token)
	m.Notify.SendGridAPIKey = mask(m.Notify.SendGridAPIKey)
	m.Web.APIToken = mask(m.Web.APIToken)
	m.Database.DSN = maskDSN(m.Database.Driver, m.Database.DSN)
	return m
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

// maskDSN hides the password of a postgres URL
func maskDSN(driver, dsn string) string {
	if driver != config.DriverPostgres || dsn == "" {
		return dsn
	}
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if user, _, ok := strings.Cut(creds, ":"); ok {
		return dsn[:scheme+3] + user + ":********" + dsn[at:]
	}
	return dsn
}
