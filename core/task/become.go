package task

import (
	"context"
	"fmt"

	"github.com/furkankose/katmer/core/provider"
	"github.com/furkankose/katmer/core/types"
)

// defaultSudoPromptMarker is the string ctx.exec's prompt pump watches
// for when become doesn't declare one of its own.
const defaultSudoPromptMarker = "KATMER_SUDO_PROMPT:"

// becomeControl rewrites ctx.exec to prepend a sudo invocation and
// configures the executor's prompt-driven password pump, directly
// adjacent to the module call it affects.
func becomeControl(_ *Context) func(next ExecuteFunc) ExecuteFunc {
	return func(next ExecuteFunc) ExecuteFunc {
		return func(ctx context.Context, tc *Context) (types.ModuleResult, error) {
			password := tc.Task.BecomePass
			if !password.IsSet() {
				password = tc.Target.Password
			}
			user := tc.Task.BecomeUser

			tc.execOpts.Become = &provider.BecomeOptions{
				User:                user,
				InteractivePassword: password.Reveal(),
				HidePromptLine:      true,
				PromptMarker:        defaultSudoPromptMarker,
			}
			tc.execOpts.RewriteCommand = func(prepared string) string {
				cmd := fmt.Sprintf("sudo -S -p '%s'", defaultSudoPromptMarker)
				if user != "" {
					cmd += " -u " + user
				}
				return cmd + " " + prepared
			}
			tc.rebuildExec()
			return next(ctx, tc)
		}
	}
}
