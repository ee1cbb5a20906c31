package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/forest-guardian/satfusion/internal/imagery"
	"github.com/forest-guardian/satfusion/internal/pipeline"
)

// Colors for consistent UI
const (
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorReset  = "\033[0m"
)

var stdin = bufio.NewReader(os.Stdin)

// PrintWarning displays a warning message with consistent formatting
func PrintWarning(message string) {
	fmt.Printf("%s\nWarning:%s\n", ColorYellow, ColorReset)
	fmt.Printf("%s%s%s\n", ColorYellow, message, ColorReset)
}

// PrintError displays an error message with consistent formatting
func PrintError(message string) {
	fmt.Printf("\n%sError: %s%s\n", ColorRed, message, ColorReset)
}

// PrintSuccess displays a success message with consistent formatting
func PrintSuccess(message string) {
	fmt.Printf("\n%s%s%s\n", ColorGreen, message, ColorReset)
}

// PrintReport lists run records as an aligned table
func PrintReport(rows []*pipeline.RunRecord) {
	writeReport(os.Stdout, rows)
}

func writeReport(w io.Writer, rows []*pipeline.RunRecord) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSTEP\tSITE\tSATELLITE\tINPUT\tSTATUS\tDURATION\tERROR")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Time, r.Step, r.Site, r.Satellite, r.Input, r.Status, r.Duration, r.Error)
	}
	tw.Flush()
}

// PrintInfo displays an info message with consistent formatting
func PrintInfo(message string) {
	fmt.Printf("%s%s%s", ColorBlue, message, ColorReset)
}

// ReadString reads a string from stdin with trimming
func ReadString(prompt string) string {
	PrintInfo(prompt)
	input, _ := stdin.ReadString('\n')
	return strings.TrimSpace(input)
}

// ReadInt reads an integer from stdin with validation
func ReadInt(prompt string, min, max int) (int, error) {
	input := ReadString(prompt)
	value, err := strconv.Atoi(input)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", input)
	}

	if value < min || value > max {
		return 0, fmt.Errorf("value must be between %d and %d", min, max)
	}

	return value, nil
}

// ReadPositiveInt reads a positive integer from stdin
func ReadPositiveInt(prompt string) (int, error) {
	input := ReadString(prompt)
	value, err := strconv.Atoi(input)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid number: %s. Please enter a positive integer", input)
	}

	return value, nil
}

// ReadYes reads a y/n answer; anything but y or yes is no.
func ReadYes(prompt string) bool {
	answer := strings.ToLower(ReadString(prompt + " [y/N]: "))
	return answer == "y" || answer == "yes"
}

// SelectOption lists options and returns the chosen one
func SelectOption(title string, options []string) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("no %s available", strings.ToLower(title))
	}
	fmt.Printf("%s\nAvailable %s:%s\n", ColorGreen, strings.ToLower(title), ColorReset)
	for i, opt := range options {
		fmt.Printf("%s%d. %s%s\n", ColorGreen, i+1, opt, ColorReset)
	}
	choice, err := ReadInt(fmt.Sprintf("Enter the number of the %s: ", strings.ToLower(strings.TrimSuffix(title, "s"))), 1, len(options))
	if err != nil {
		return "", err
	}
	return options[choice-1], nil
}

// ReadSatellite asks for one of the known satellites
func ReadSatellite(allowed ...string) (string, error) {
	if len(allowed) == 0 {
		allowed = imagery.SatelliteNames()
	}
	return SelectOption("Satellites", allowed)
}

// ReadOrbit asks for the Sentinel-1 pass direction
func ReadOrbit() (string, error) {
	return SelectOption("Orbits", []string{imagery.Ascending, imagery.Descending})
}

// ReadYearRange reads a start and end year, end defaulting to start
func ReadYearRange() (int, int, error) {
	current := time.Now().Year()
	start, err := ReadInt("Enter the start year: ", 2013, current)
	if err != nil {
		return 0, 0, err
	}
	input := ReadString(fmt.Sprintf("Enter the end year (default %d): ", start))
	if input == "" {
		return start, start, nil
	}
	end, err := strconv.Atoi(input)
	if err != nil || end < start || end > current {
		return 0, 0, fmt.Errorf("end year must be between %d and %d", start, current)
	}
	return start, end, nil
}

// ReadBands reads a comma separated band list; empty means all bands
func ReadBands(sat imagery.Satellite) []string {
	PrintInfo(fmt.Sprintf("Bands of %s: %s\n", sat.Name, strings.Join(sat.BandNames(), ", ")))
	input := ReadString("Enter the bands to export separated by commas (empty for all): ")
	if input == "" {
		return nil
	}
	var bands []string
	for _, b := range strings.Split(input, ",") {
		if b = strings.ToUpper(strings.TrimSpace(b)); b != "" {
			bands = append(bands, b)
		}
	}
	return bands
}
