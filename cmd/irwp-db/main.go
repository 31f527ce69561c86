// IRWP Telemetry CLI Tool
// Provides command-line access to the controller telemetry database
package main

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
)

var (
	dbPath  string
	rootCmd = &cobra.Command{
		Use:   "irwp-db",
		Short: "IRWP Telemetry CLI",
		Long:  "Command-line tool for inspecting the IRWP wearable controller telemetry database.",
	}

	runsCmd = &cobra.Command{
		Use:   "runs",
		Short: "List cycling runs",
		RunE:  showRuns,
	}

	auditCmd = &cobra.Command{
		Use:   "audit [channel]",
		Short: "Show the command audit trail",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showAudit,
	}

	safetyCmd = &cobra.Command{
		Use:   "safety",
		Short: "Show safety events",
		RunE:  showSafety,
	}

	sensorsCmd = &cobra.Command{
		Use:   "sensors",
		Short: "Show sensor samples",
		RunE:  showSensors,
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE:  showStats,
	}

	queryCmd = &cobra.Command{
		Use:   "query [sql]",
		Short: "Execute a raw SQL query",
		Args:  cobra.ExactArgs(1),
		RunE:  executeQuery,
	}

	limit int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "database", "d", "/var/lib/irwp/telemetry.db", "Database file path")

	runsCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show")
	auditCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show")
	safetyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show")
	sensorsCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show")

	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(safetyCmd)
	rootCmd.AddCommand(sensorsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(queryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDB() (*sql.DB, error) {
	return sql.Open("sqlite3", dbPath+"?mode=ro")
}

func showRuns(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT id, pattern_name, COALESCE(target_name, ''), started_at, ended_at, cycles
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPATTERN\tTARGET\tSTARTED\tENDED\tCYCLES")
	fmt.Fprintln(w, "--\t-------\t------\t-------\t-----\t------")

	for rows.Next() {
		var id, patternName, targetName string
		var startedAt time.Time
		var endedAt sql.NullTime
		var cycles int

		if err := rows.Scan(&id, &patternName, &targetName, &startedAt, &endedAt, &cycles); err != nil {
			return err
		}

		endStr := "open"
		if endedAt.Valid {
			endStr = endedAt.Time.Format("01-02 15:04:05")
		}
		if targetName == "" {
			targetName = "-"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			id[:8], patternName, targetName,
			startedAt.Format("01-02 15:04:05"), endStr, cycles)
	}
	w.Flush()
	return rows.Err()
}

func showAudit(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	var query string
	var queryArgs []interface{}

	if len(args) > 0 {
		query = `
			SELECT channel, line, response, timestamp
			FROM command_audit WHERE channel = ? ORDER BY id DESC LIMIT ?
		`
		queryArgs = []interface{}{args[0], limit}
	} else {
		query = `
			SELECT channel, line, response, timestamp
			FROM command_audit ORDER BY id DESC LIMIT ?
		`
		queryArgs = []interface{}{limit}
	}

	rows, err := db.Query(query, queryArgs...)
	if err != nil {
		return err
	}
	defer rows.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHANNEL\tCOMMAND\tRESPONSE\tTIME")
	fmt.Fprintln(w, "-------\t-------\t--------\t----")

	for rows.Next() {
		var channel, line, response string
		var timestamp time.Time

		if err := rows.Scan(&channel, &line, &response, &timestamp); err != nil {
			return err
		}

		if len(response) > 40 {
			response = response[:37] + "..."
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			channel, line, response, timestamp.Format("01-02 15:04:05"))
	}
	w.Flush()
	return rows.Err()
}

func showSafety(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT kind, COALESCE(detail, ''), timestamp
		FROM safety_events ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tDETAIL\tTIME")
	fmt.Fprintln(w, "----\t------\t----")

	for rows.Next() {
		var kind, detail string
		var timestamp time.Time

		if err := rows.Scan(&kind, &detail, &timestamp); err != nil {
			return err
		}
		if detail == "" {
			detail = "-"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\n", kind, detail, timestamp.Format("01-02 15:04:05"))
	}
	w.Flush()
	return rows.Err()
}

func showSensors(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT temperature, motion_x, motion_y, motion_z, timestamp
		FROM sensor_samples ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TEMP\tMOTION X\tMOTION Y\tMOTION Z\tTIME")
	fmt.Fprintln(w, "----\t--------\t--------\t--------\t----")

	for rows.Next() {
		var temperature int
		var mx, my, mz float64
		var timestamp time.Time

		if err := rows.Scan(&temperature, &mx, &my, &mz, &timestamp); err != nil {
			return err
		}

		fmt.Fprintf(w, "%.1fC\t%.2fg\t%.2fg\t%.2fg\t%s\n",
			float64(temperature)/10.0, mx, my, mz, timestamp.Format("01-02 15:04:05"))
	}
	w.Flush()
	return rows.Err()
}

func showStats(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Telemetry Statistics")
	fmt.Println("====================")

	var runCount, openRuns int
	db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&runCount)
	db.QueryRow("SELECT COUNT(*) FROM runs WHERE ended_at IS NULL").Scan(&openRuns)
	fmt.Printf("Runs: %d (open: %d)\n", runCount, openRuns)

	var auditCount int
	db.QueryRow("SELECT COUNT(*) FROM command_audit").Scan(&auditCount)
	fmt.Printf("Command audit entries: %d\n", auditCount)

	var safetyCount, emergencyCount int
	db.QueryRow("SELECT COUNT(*) FROM safety_events").Scan(&safetyCount)
	db.QueryRow("SELECT COUNT(*) FROM safety_events WHERE kind = 'emergency'").Scan(&emergencyCount)
	fmt.Printf("Safety events: %d (emergencies: %d)\n", safetyCount, emergencyCount)

	var sampleCount int
	db.QueryRow("SELECT COUNT(*) FROM sensor_samples").Scan(&sampleCount)
	fmt.Printf("Sensor samples: %d\n", sampleCount)

	return nil
}

func executeQuery(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	query := args[0]

	// Only allow SELECT queries for safety
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
		return fmt.Errorf("only SELECT queries are allowed")
	}

	rows, err := db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(cols, "\t"))
	fmt.Fprintln(w, strings.Repeat("-\t", len(cols)))

	values := make([]interface{}, len(cols))
	valuePtrs := make([]interface{}, len(cols))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(valuePtrs...); err != nil {
			return err
		}

		var row []string
		for _, v := range values {
			switch val := v.(type) {
			case nil:
				row = append(row, "NULL")
			case []byte:
				row = append(row, string(val))
			default:
				row = append(row, fmt.Sprintf("%v", val))
			}
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
	return nil
}
