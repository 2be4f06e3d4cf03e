// Command farewatch records flight prices for a fixed set of routes, charts
// their history and sends an alert when a price changes. It runs one
// collection cycle per invocation and is meant to be driven by cron.
package main

func main() {
	Execute()
}
