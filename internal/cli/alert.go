package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ogulcanaydogan/fare-guardian/pkg/history"
	"github.com/ogulcanaydogan/fare-guardian/pkg/model"
	"github.com/ogulcanaydogan/fare-guardian/pkg/monitor"
	"github.com/ogulcanaydogan/fare-guardian/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Manage price alerts",
}

var alertAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a price alert",
	RunE:  runAlertAdd,
}

var alertListCmd = &cobra.Command{
	Use:   "list",
	Short: "List price alerts",
	RunE:  runAlertList,
}

var alertShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an alert and its price history",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertShow,
}

var alertReactivateCmd = &cobra.Command{
	Use:   "reactivate <id>",
	Short: "Turn a triggered alert back on",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertReactivate,
}

var alertDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an alert",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertDelete,
}

func init() {
	rootCmd.AddCommand(alertCmd)
	alertCmd.AddCommand(alertAddCmd, alertListCmd, alertShowCmd, alertReactivateCmd, alertDeleteCmd)

	alertAddCmd.Flags().String("from", "", "Origin IATA code")
	alertAddCmd.Flags().String("to", "", "Destination IATA code")
	alertAddCmd.Flags().String("depart", "", "Departure date (YYYY-MM-DD)")
	alertAddCmd.Flags().String("return", "", "Return date (YYYY-MM-DD), empty for one-way")
	alertAddCmd.Flags().String("target", "", "Target price, e.g. 299.99")
	alertAddCmd.Flags().String("currency", "USD", "Currency code")
	alertAddCmd.Flags().String("class", string(model.ClassEconomy), "Travel class (ECONOMY, PREMIUM_ECONOMY, BUSINESS, FIRST)")
	alertAddCmd.Flags().Int("adults", 1, "Adult passengers")
	alertAddCmd.Flags().Int("children", 0, "Child passengers")
	alertAddCmd.Flags().Int("infants", 0, "Infant passengers")
	alertAddCmd.Flags().StringP("frequency", "f", string(model.FrequencyDaily), "Check frequency (hourly, daily, weekly)")
	alertAddCmd.Flags().StringP("email", "e", "", "Email to notify")
	for _, name := range []string{"from", "to", "depart", "target"} {
		_ = alertAddCmd.MarkFlagRequired(name)
	}

	alertListCmd.Flags().Bool("active", false, "Only show active alerts")
	alertListCmd.Flags().StringP("email", "e", "", "Only show alerts for this email")
}

func runAlertAdd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	from, _ := flags.GetString("from")
	to, _ := flags.GetString("to")
	depart, _ := flags.GetString("depart")
	ret, _ := flags.GetString("return")
	targetRaw, _ := flags.GetString("target")
	currency, _ := flags.GetString("currency")
	class, _ := flags.GetString("class")
	adults, _ := flags.GetInt("adults")
	children, _ := flags.GetInt("children")
	infants, _ := flags.GetInt("infants")
	frequency, _ := flags.GetString("frequency")
	email, _ := flags.GetString("email")

	target, err := decimal.NewFromString(targetRaw)
	if err != nil {
		return fmt.Errorf("invalid target price %q: %w", targetRaw, err)
	}
	if !target.IsPositive() {
		return fmt.Errorf("target price must be positive, got %s", target)
	}
	if _, err := time.Parse(time.DateOnly, depart); err != nil {
		return fmt.Errorf("invalid departure date %q: %w", depart, err)
	}
	if ret != "" {
		if _, err := time.Parse(time.DateOnly, ret); err != nil {
			return fmt.Errorf("invalid return date %q: %w", ret, err)
		}
	}
	if adults < 1 {
		return fmt.Errorf("at least one adult is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	alert := &model.PriceAlert{
		Email: email,
		Route: model.Route{
			From:          strings.ToUpper(from),
			To:            strings.ToUpper(to),
			DepartureDate: depart,
			ReturnDate:    ret,
		},
		TargetPrice: target,
		Currency:    strings.ToUpper(currency),
		TravelClass: model.TravelClass(strings.ToUpper(class)),
		Passengers:  model.Passengers{Adults: adults, Children: children, Infants: infants},
		Frequency:   model.ParseFrequency(frequency),
		Active:      true,
	}
	if err := store.CreateAlert(cmd.Context(), alert); err != nil {
		return fmt.Errorf("create alert: %w", err)
	}

	fmt.Printf("Alert created:\n")
	fmt.Printf("  ID:         %s\n", alert.ID)
	fmt.Printf("  Route:      %s\n", routeLabel(alert.Route))
	fmt.Printf("  Target:     %s %s\n", alert.TargetPrice.StringFixed(2), alert.Currency)
	fmt.Printf("  Frequency:  %s\n", alert.Frequency)

	return nil
}

func runAlertList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	activeOnly, _ := cmd.Flags().GetBool("active")
	email, _ := cmd.Flags().GetString("email")

	alerts, err := store.ListAlerts(cmd.Context(), storage.AlertFilter{ActiveOnly: activeOnly, Email: email})
	if err != nil {
		return fmt.Errorf("list alerts: %w", err)
	}

	if len(alerts) == 0 {
		fmt.Println("No alerts found. Use 'fg alert add' to create one.")
		return nil
	}

	gate := newGate(cfg)
	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tROUTE\tTARGET\tCURRENT\tLOWEST\tFREQUENCY\tLAST CHECKED\tNEXT CHECK\tSTATUS\n")
	for _, a := range alerts {
		current, lowest := "-", "-"
		if a.CurrentPrice != nil {
			current = a.CurrentPrice.StringFixed(2)
		}
		if p, ok := history.FromPoints(len(a.PriceHistory), a.PriceHistory).Lowest(); ok {
			lowest = p.Price.StringFixed(2)
		}
		checked := "never"
		if a.LastChecked != nil {
			checked = a.LastChecked.Local().Format(time.DateTime)
		}
		status := "active"
		if !a.Active {
			status = "triggered"
		}

		fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, routeLabel(a.Route),
			a.TargetPrice.StringFixed(2), a.Currency,
			current, lowest, a.Frequency, checked, nextCheckLabel(gate, &a, now), status,
		)
	}
	w.Flush()

	return nil
}

func runAlertShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	a, err := store.GetAlert(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get alert: %w", err)
	}

	fmt.Printf("Alert %s\n", a.ID)
	fmt.Printf("  Route:      %s\n", routeLabel(a.Route))
	fmt.Printf("  Class:      %s\n", a.TravelClass)
	fmt.Printf("  Passengers: %d adult(s), %d child(ren), %d infant(s)\n",
		a.Passengers.Adults, a.Passengers.Children, a.Passengers.Infants)
	fmt.Printf("  Target:     %s %s\n", a.TargetPrice.StringFixed(2), a.Currency)
	fmt.Printf("  Frequency:  %s\n", a.Frequency)
	fmt.Printf("  Active:     %t\n", a.Active)
	if a.LastChecked != nil {
		fmt.Printf("  Checked:    %s\n", a.LastChecked.Local().Format(time.DateTime))
	}
	fmt.Printf("  Next check: %s\n", nextCheckLabel(newGate(cfg), a, time.Now()))
	if a.TriggeredAt != nil {
		fmt.Printf("  Triggered:  %s\n", a.TriggeredAt.Local().Format(time.DateTime))
	}

	if len(a.PriceHistory) == 0 {
		fmt.Println("\nNo prices observed yet.")
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "OBSERVED\tPRICE\n")
	for _, p := range a.PriceHistory {
		fmt.Fprintf(w, "%s\t%s %s\n", p.Timestamp.Local().Format(time.DateTime), p.Price.StringFixed(2), a.Currency)
	}
	w.Flush()

	return nil
}

func runAlertReactivate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Reactivate(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("reactivate alert: %w", err)
	}
	fmt.Printf("Alert %s reactivated\n", args[0])
	return nil
}

func runAlertDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteAlert(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	fmt.Printf("Alert %s deleted\n", args[0])
	return nil
}

// nextCheckLabel renders when the scanner will next re-price the alert.
func nextCheckLabel(gate *monitor.FrequencyGate, a *model.PriceAlert, now time.Time) string {
	if !a.Active {
		return "-"
	}
	next := gate.NextDue(a)
	if next.IsZero() || !next.After(now) {
		return "next scan"
	}
	return next.Local().Format(time.DateTime)
}

func routeLabel(r model.Route) string {
	label := r.From + " → " + r.To + " " + r.DepartureDate
	if r.ReturnDate != "" {
		label += " / " + r.ReturnDate
	}
	return label
}
