// Package details renders the selected-project card and the related news
// panel.
package details

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"floodguard-be/pkg/protocol"
)

type Status string

const (
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
)

// StatusAt derives the project status at now. It is never stored.
func StatusAt(p protocol.Project, now time.Time) Status {
	if p.CompletionDateActual != nil && p.CompletionDateActual.Before(now) {
		return StatusCompleted
	}
	return StatusOngoing
}

// Card is the display form of one project.
type Card struct {
	ID           string
	Title        string
	Contractor   string
	ContractCost string
	ABC          string
	Location     string
	TypeOfWork   string
	Year         string
	StartDate    string
	Completion   string
	Status       Status
	Coordinate   string
}

const notAvailable = "N/A"

var printer = message.NewPrinter(language.English)

// Peso formats an amount as ₱1,234,567.89.
func Peso(amount float64) string {
	return "₱" + printer.Sprintf("%.2f", amount)
}

// RenderCard formats p for display. now is the render time used for the
// status.
func RenderCard(p protocol.Project, now time.Time) Card {
	c := Card{
		ID:           orNA(p.ID),
		Title:        orNA(p.Description),
		Contractor:   orNA(p.Contractor),
		ContractCost: Peso(p.ContractCost),
		ABC:          Peso(p.ABC),
		Location:     orNA(Location(p)),
		TypeOfWork:   orNA(p.TypeOfWork),
		Year:         notAvailable,
		StartDate:    formatDate(p.StartDate),
		Completion:   formatDate(p.CompletionDateActual),
		Status:       StatusAt(p, now),
		Coordinate:   notAvailable,
	}
	if p.InfraYear > 0 {
		c.Year = strconv.Itoa(p.InfraYear)
	}
	if p.Placeable() {
		c.Coordinate = strconv.FormatFloat(p.Coordinate.Lat, 'f', 5, 64) + ", " +
			strconv.FormatFloat(p.Coordinate.Lon, 'f', 5, 64)
	}
	return c
}

// Location joins the non-empty municipality, province and region.
func Location(p protocol.Project) string {
	var parts []string
	for _, s := range []string{p.Municipality, p.Province, p.Region} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

func formatDate(t *time.Time) string {
	if t == nil {
		return notAvailable
	}
	return t.Format("Jan 2, 2006")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}
