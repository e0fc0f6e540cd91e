// Command evsync reconciles the vehicle catalogue spreadsheet into
// PostgreSQL. It serves the sync API and runs syncs, migrations and
// diagnostics from the command line.
package main

func main() {
	Execute()
}
