// Command faqbot answers questions from a private document collection.
package main

// @title           faqbot API
// @version         1.0
// @description     Answers questions from a private document collection, grounded in retrieved passages.
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description API token issued by faqbot token. Format: "Bearer {token}"

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "faqbot",
		Short:         "Answer questions from your own documents",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "config file (default ./faqbot.yaml when present)")

	root.AddCommand(
		serveCmd(a),
		ingestCmd(a),
		preprocessCmd(a),
		askCmd(a),
		tokenCmd(a),
		versionCmd(),
	)
	return root
}
