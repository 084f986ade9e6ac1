package main

import (
	"petling/internal/pet"

	"github.com/fatih/color"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func renderCatalog(entries []pet.CatalogEntry) {
	if len(entries) == 0 {
		printWarn("Catalog is empty.")
		return
	}
	accent.Println("Pet catalog")
	for _, e := range entries {
		neutral.Printf("  %-10s %-12s %6d points  (%s)\n", e.Key, e.Name, e.Price, e.Animation)
	}
}

func renderProfile(p pet.Profile) {
	accent.Printf("User %s\n", p.UserID)
	name := p.Username
	if name == "" {
		name = "(no username)"
	}
	neutral.Printf("  username: %s\n", name)
	neutral.Printf("  balance:  %d points\n", p.Balance)
	petLine := "none"
	if p.HasPet {
		petLine = "yes"
	}
	neutral.Printf("  pet:      %s\n", petLine)
}
