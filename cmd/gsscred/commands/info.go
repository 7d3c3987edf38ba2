package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/marmos91/gsscred/cmd/gsscred/cmdutil"
	"github.com/marmos91/gsscred/pkg/gssapi"
	"github.com/marmos91/gsscred/pkg/gssapi/native"
	"github.com/marmos91/gsscred/pkg/krb5"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Acquire a credential and print its properties",
	Long: `Acquire a credential through the krb5 provider and print the
principal name, remaining lifetime, allowed usage and mechanism set.

Examples:
  # Inspect the default initiator credential (from kinit's ccache)
  gsscred info

  # Inspect an acceptor credential from a keytab
  gsscred info --usage accept --keytab /etc/krb5.keytab

  # Request a bounded lifetime and print JSON
  gsscred info --lifetime 1h -o json`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().String("usage", "initiate", "Credential usage (initiate|accept|both)")
	infoCmd.Flags().String("name", "", "Desired principal (default: whatever the source resolves to)")
	infoCmd.Flags().Duration("lifetime", 0, "Requested lifetime (0 = as long as possible)")
}

// credReport is the JSON shape of an inspected credential.
type credReport struct {
	Name       string   `json:"name"`
	Lifetime   string   `json:"lifetime"`
	Usage      string   `json:"usage"`
	Mechanisms []string `json:"mechanisms"`
}

func parseUsage(s string) (gssapi.CredUsage, error) {
	switch strings.ToLower(s) {
	case "initiate":
		return gssapi.UsageInitiate, nil
	case "accept":
		return gssapi.UsageAccept, nil
	case "both":
		return gssapi.UsageBoth, nil
	default:
		return 0, fmt.Errorf("invalid usage %q (want initiate, accept or both)", s)
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	usageFlag, _ := cmd.Flags().GetString("usage")
	nameFlag, _ := cmd.Flags().GetString("name")
	lifetimeFlag, _ := cmd.Flags().GetDuration("lifetime")

	usage, err := parseUsage(usageFlag)
	if err != nil {
		return err
	}

	lib := krb5.New(krb5.Config{
		CCachePath: viper.GetString("ccache"),
		KeytabPath: viper.GetString("keytab"),
	})

	var desired *gssapi.Name
	if nameFlag != "" {
		desired, err = gssapi.ImportName(lib, nameFlag, native.NTKrb5Principal)
		if err != nil {
			return fmt.Errorf("import name %q: %w", nameFlag, err)
		}
		defer desired.Release()
	}

	cred, err := gssapi.Acquire(gssapi.AcquireOptions{
		Lib:      lib,
		Name:     desired,
		Lifetime: lifetimeFlag,
		Usage:    usage,
	})
	if err != nil {
		return fmt.Errorf("acquire credential: %w", err)
	}
	defer cred.Release()

	info, err := cred.Info()
	if err != nil {
		return fmt.Errorf("inquire credential: %w", err)
	}
	defer info.Release()

	display, err := info.Name.Display()
	if err != nil {
		return fmt.Errorf("display name: %w", err)
	}
	oids, err := info.Mechanisms.Oids()
	if err != nil {
		return fmt.Errorf("read mechanism set: %w", err)
	}

	report := credReport{
		Name:     display,
		Lifetime: formatLifetime(info.Lifetime),
		Usage:    info.Usage.String(),
	}
	for _, oid := range oids {
		report.Mechanisms = append(report.Mechanisms, oid.String())
	}

	if viper.GetString("output") == "json" {
		return cmdutil.PrintJSON(os.Stdout, report)
	}
	cmdutil.PrintKeyValues(os.Stdout, [][2]string{
		{"Name", report.Name},
		{"Lifetime", report.Lifetime},
		{"Usage", report.Usage},
		{"Mechanisms", strings.Join(report.Mechanisms, ", ")},
	})
	return nil
}

func formatLifetime(d time.Duration) string {
	// The provider reports the indefinite sentinel as a huge duration;
	// anything at or beyond the 32-bit seconds range reads as "no expiry".
	if d >= time.Duration(0xffffffff)*time.Second {
		return "indefinite"
	}
	return d.String()
}
