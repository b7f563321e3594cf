package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hostwright/hostwright/pkg/ops"
)

func newTLSCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tls",
		Short: "Issue TLS material on a target",
	}
	cmd.AddCommand(newTLSSelfSignedCommand())
	return cmd
}

func newTLSSelfSignedCommand() *cobra.Command {
	var (
		dir     string
		subject string
		days    int
	)

	cmd := &cobra.Command{
		Use:   "selfsigned",
		Short: "Generate a self-signed certificate with a hardened key",
		Example: `  hostwright tls selfsigned -t web1 --dir /etc/ssl/app --subject /CN=app.internal`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTarget(cmd, func(o *ops.Ops) error {
				cert, err := o.GenerateSelfSigned(cmd.Context(), dir, subject, days)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "certificate: %s\nkey:         %s\n",
					cert.CertPath, cert.KeyPath)
				return nil
			})
		},
	}
	addTargetFlag(cmd)
	cmd.Flags().StringVar(&dir, "dir", "", "directory for key and certificate")
	cmd.Flags().StringVar(&subject, "subject", "", "certificate subject, e.g. /CN=host")
	cmd.Flags().IntVar(&days, "days", 365, "validity in days")
	_ = cmd.MarkFlagRequired("dir")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
