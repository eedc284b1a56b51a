package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ogulcanaydogan/fare-guardian/pkg/model"
	"github.com/ogulcanaydogan/fare-guardian/pkg/providers"
	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect fare providers",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured fare providers",
	RunE:  runProvidersList,
}

var providersSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Price a route once across all configured providers",
	RunE:  runProvidersSearch,
}

func init() {
	rootCmd.AddCommand(providersCmd)
	providersCmd.AddCommand(providersListCmd, providersSearchCmd)

	providersSearchCmd.Flags().String("from", "", "Origin IATA code")
	providersSearchCmd.Flags().String("to", "", "Destination IATA code")
	providersSearchCmd.Flags().String("depart", "", "Departure date (YYYY-MM-DD)")
	providersSearchCmd.Flags().String("return", "", "Return date (YYYY-MM-DD)")
	providersSearchCmd.Flags().String("currency", "USD", "Currency code")
	providersSearchCmd.Flags().String("class", string(model.ClassEconomy), "Travel class")
	providersSearchCmd.Flags().Int("adults", 1, "Adult passengers")
	for _, name := range []string{"from", "to", "depart"} {
		_ = providersSearchCmd.MarkFlagRequired(name)
	}
}

func runProvidersList(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry, err := initRegistry(cfg, newLogger(cfg))
	if err != nil {
		return err
	}

	names := registry.List()
	if len(names) == 0 {
		fmt.Println("No providers configured. Check provider.kind in config.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "PROVIDER\tSOURCE\n")
	for _, name := range names {
		p, err := registry.Get(name)
		if err != nil {
			return err
		}
		source := "-"
		switch p.(type) {
		case *providers.FlightOffers:
			source = cfg.Provider.BaseURL
		case *providers.Static:
			source = cfg.Provider.FaresFile
		}
		fmt.Fprintf(w, "%s\t%s\n", name, source)
	}
	w.Flush()

	return nil
}

func runProvidersSearch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry, err := initRegistry(cfg, newLogger(cfg))
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	from, _ := flags.GetString("from")
	to, _ := flags.GetString("to")
	depart, _ := flags.GetString("depart")
	ret, _ := flags.GetString("return")
	currency, _ := flags.GetString("currency")
	class, _ := flags.GetString("class")
	adults, _ := flags.GetInt("adults")

	req := model.SearchRequest{
		Route: model.Route{
			From:          strings.ToUpper(from),
			To:            strings.ToUpper(to),
			DepartureDate: depart,
			ReturnDate:    ret,
		},
		Passengers:  model.Passengers{Adults: adults},
		TravelClass: model.TravelClass(strings.ToUpper(class)),
		Currency:    strings.ToUpper(currency),
	}

	offers, err := registry.Search(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if len(offers) == 0 {
		fmt.Println("No offers found.")
		return nil
	}

	cheapest, _ := model.Cheapest(offers)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "PROVIDER\tAIRLINE\tSTOPS\tPRICE\t\n")
	for _, o := range offers {
		mark := ""
		if o.ID == cheapest.ID && o.Provider == cheapest.Provider && o.Price.Equal(cheapest.Price) {
			mark = "[CHEAPEST]"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s %s\t%s\n",
			o.Provider, o.Airline, o.Stops, o.Price.StringFixed(2), o.Currency, mark)
	}
	w.Flush()

	return nil
}
