/*
Package cli holds helpers shared by the quorum commands.

Results implementing Tabular print as aligned columns or CSV; anything can
print as JSON:

	f := cli.NewFormatter(cli.FormatJSON)
	if err := f.FormatTo(os.Stdout, proposals); err != nil {
		return err
	}

ExitCode turns a command error into the process exit status, and
SetupSignalHandler gives long-running commands a context canceled on
SIGINT or SIGTERM. OnHangup runs a callback on SIGHUP, which the run
command uses to reload the policy table.
*/
package cli
