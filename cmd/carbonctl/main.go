package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/CarbonSense/service-estimation/internal/geo"
	"github.com/CarbonSense/service-estimation/internal/geocoding"
)

var (
	outputJSON   bool
	nominatimURL string
	userAgent    string
)

var rootCmd = &cobra.Command{
	Use:   "carbonctl",
	Short: "Utilities for the carbon estimation service",
	Long:  `Command-line helpers for route distances, geocoding, and the built-in city index.`,
}

var distanceCmd = &cobra.Command{
	Use:   "distance",
	Short: "Compute the great-circle distance between two coordinates",
	RunE:  runDistance,
}

var geocodeCmd = &cobra.Command{
	Use:   "geocode <query>",
	Short: "Look up place suggestions for a free-text query",
	Args:  cobra.ExactArgs(1),
	RunE:  runGeocode,
}

var nearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "Find the nearest known city for a coordinate",
	RunE:  runNearest,
}

var (
	fromLat float64
	fromLon float64
	toLat   float64
	toLon   float64
	atLat   float64
	atLon   float64
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output results as JSON")

	distanceCmd.Flags().Float64Var(&fromLat, "from-lat", 0, "Origin latitude")
	distanceCmd.Flags().Float64Var(&fromLon, "from-lon", 0, "Origin longitude")
	distanceCmd.Flags().Float64Var(&toLat, "to-lat", 0, "Destination latitude")
	distanceCmd.Flags().Float64Var(&toLon, "to-lon", 0, "Destination longitude")
	_ = distanceCmd.MarkFlagRequired("from-lat")
	_ = distanceCmd.MarkFlagRequired("from-lon")
	_ = distanceCmd.MarkFlagRequired("to-lat")
	_ = distanceCmd.MarkFlagRequired("to-lon")

	geocodeCmd.Flags().StringVar(&nominatimURL, "nominatim-url", "https://nominatim.openstreetmap.org", "Nominatim base URL")
	geocodeCmd.Flags().StringVar(&userAgent, "user-agent", "CarbonSense/2.0 (carbonctl)", "User-Agent sent to Nominatim")

	nearestCmd.Flags().Float64Var(&atLat, "lat", 0, "Latitude")
	nearestCmd.Flags().Float64Var(&atLon, "lon", 0, "Longitude")
	_ = nearestCmd.MarkFlagRequired("lat")
	_ = nearestCmd.MarkFlagRequired("lon")

	rootCmd.AddCommand(distanceCmd, geocodeCmd, nearestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDistance(cmd *cobra.Command, args []string) error {
	if !geo.ValidLatitude(fromLat) || !geo.ValidLatitude(toLat) {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if !geo.ValidLongitude(fromLon) || !geo.ValidLongitude(toLon) {
		return fmt.Errorf("longitude must be between -180 and 180")
	}

	km := geo.Distance(fromLat, fromLon, toLat, toLon)
	if outputJSON {
		return printJSON(map[string]float64{"distance_km": km})
	}
	fmt.Printf("%.2f km\n", km)
	return nil
}

func runGeocode(cmd *cobra.Command, args []string) error {
	client := geocoding.NewClient(nominatimURL, userAgent)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	places, err := client.Search(ctx, args[0])
	if err != nil {
		return fmt.Errorf("geocode failed: %w", err)
	}

	if outputJSON {
		return printJSON(places)
	}
	if len(places) == 0 {
		fmt.Println("no results")
		return nil
	}
	for _, p := range places {
		fmt.Printf("%9.4f %9.4f  %s\n", p.Lat, p.Lon, p.DisplayName)
	}
	return nil
}

func runNearest(cmd *cobra.Command, args []string) error {
	if !geo.ValidLatitude(atLat) || !geo.ValidLongitude(atLon) {
		return fmt.Errorf("invalid coordinate")
	}

	index := geo.NewCityIndex()
	city, km := index.Nearest(atLat, atLon)

	if outputJSON {
		return printJSON(map[string]interface{}{
			"city":        city.Name,
			"region":      city.Region,
			"lat":         city.Lat,
			"lon":         city.Lon,
			"distance_km": km,
		})
	}
	fmt.Printf("%s (%s), %.1f km away\n", city.Name, city.Region, km)
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
