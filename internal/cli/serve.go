package cli

// Run executes the serve command
func (c *ServeCmd) Run(ctx *Context) error {
	if c.Port != 0 {
		ctx.Config.Web.Port = c.Port
	}
	if c.Host != "" {
		ctx.Config.Web.Host = c.Host
	}

	b, err := ctx.newBot()
	if err != nil {
		return err
	}
	defer ctx.closeBot(b)

	if ctx.Config.Web.Enabled {
		ctx.printf("Web server at http://%s\n", ctx.Config.GetWebAddr())
	}
	if ctx.Config.Telegram.Enabled {
		ctx.printf("Telegram polling enabled\n")
	}
	ctx.printf("Press Ctrl+C to stop\n")

	return b.Run(ctx.Ctx)
}
