package cli

import (
	"os"

	"github.com/perbu/presensi/internal/chat"
)

// Run executes the repl command. Each line is handled as a chat message;
// replies are printed as they arrive. EOF ends the session after running
// tasks have finished.
func (c *ReplCmd) Run(ctx *Context) error {
	b, err := ctx.newBot()
	if err != nil {
		return err
	}
	defer ctx.closeBot(b)

	ctx.printf("Type %q or %q followed by a question. Ctrl+D to quit.\n",
		ctx.Config.Triggers.Verify, ctx.Config.Triggers.Advisory)
	return chat.NewConsole(b.Router(), os.Stdin, ctx.Out).Run(ctx.Ctx)
}
