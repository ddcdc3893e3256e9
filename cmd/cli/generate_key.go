package cli

import (
	"fmt"

	"github.com/flowbaker/tgbridge/internal/initialization"

	"github.com/spf13/cobra"
)

func NewGenerateKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate-key",
		Short: "Generate a STATE_KEY",
		Long: `Print a random 192-bit STATE_KEY. With --signing, also print an Ed25519 key pair:
the public half goes into API_SIGNING_PUBLIC_KEY, the private half to the flows platform.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			signing, _ := cmd.Flags().GetBool("signing")

			if !signing {
				stateKey, err := initialization.GenerateStateKey()
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "STATE_KEY=%s\n", stateKey)
				return nil
			}

			keys, err := initialization.GenerateAllKeys()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "STATE_KEY=%s\n", keys.StateKey)
			fmt.Fprintf(out, "API_SIGNING_PUBLIC_KEY=%s\n", keys.SigningPublicKey)
			fmt.Fprintf(out, "# keep private, give to the flows platform\n")
			fmt.Fprintf(out, "API_SIGNING_PRIVATE_KEY=%s\n", keys.SigningPrivateKey)

			return nil
		},
	}

	cmd.Flags().Bool("signing", false, "Also generate a request signing key pair")

	return cmd
}
