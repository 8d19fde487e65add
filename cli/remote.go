package cli

import (
	"encoding/json"

	"github.com/mirrordroid/mirrordroid/commands"
	"github.com/mirrordroid/mirrordroid/daemon"
	"github.com/mirrordroid/mirrordroid/server"
	"github.com/mirrordroid/mirrordroid/utils"
	"github.com/spf13/cobra"
)

// remoteToken returns --token, falling back to the token in the keyring.
func remoteToken() string {
	if serverToken != "" {
		return serverToken
	}
	token, err := server.LoadToken()
	if err != nil {
		utils.Verbose("No server token available: %v", err)
		return ""
	}
	return token
}

// callServer invokes method on the running server and prints the result
// in the same envelope as local commands.
func callServer(method string, params interface{}) error {
	result, err := daemon.Call(serverAddr, remoteToken(), method, params)
	if err != nil {
		return printResponse(commands.NewErrorResponse(err))
	}
	return printResponse(commands.NewSuccessResponse(json.RawMessage(result)))
}

// addServerFlags adds the flags used to reach a running server.
func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&serverAddr, "server", server.DefaultAddress, "address of the running server")
	cmd.Flags().StringVar(&serverToken, "token", "", "server token (default: the token stored in the keyring)")
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationNoRuntime] = "true"
}
