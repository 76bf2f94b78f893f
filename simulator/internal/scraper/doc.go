// Package scraper reads the rule engine's /metrics endpoint and condenses it
// into a Summary, so a simulation run can report how many readings the
// engine consumed and how many alerts fired.
package scraper
