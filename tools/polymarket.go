package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zelfhosted/server/tool"
)

var polymarketAPIURL = "https://gamma-api.polymarket.com"

// Opportunity filters.
const (
	polymarketMinHours   = 0.5
	polymarketMaxHours   = 48.0
	polymarketMinExtreme = 0.85
	polymarketPriceFloor = 0.005
	polymarketPriceCeil  = 0.995
	polymarketFetchLimit = 500
)

// gammaMarket is the subset of the Gamma markets response the scan uses.
type gammaMarket struct {
	Question      string          `json:"question"`
	Slug          string          `json:"slug"`
	OutcomePrices json.RawMessage `json:"outcomePrices"`
	EndDateISO    string          `json:"endDateIso"`
	EndDate       string          `json:"endDate"`
}

// marketOpportunity is a parsed, scored market.
type marketOpportunity struct {
	Question        string
	Slug            string
	YesPrice        float64
	NoPrice         float64
	HoursRemaining  float64
	RecommendedSide string
	BuyPrice        float64
	ProfitPct       float64
	HasPrices       bool
}

// NewPolymarketTool returns the prediction market scan backed by the Gamma
// markets API.
func NewPolymarketTool() tool.Tool {
	return tool.NewFunctionTool(
		"get_polymarket_opportunities",
		"Find high-confidence trading opportunities on Polymarket. Returns markets ending "+
			"within 48 hours that have extreme probabilities (at least 85% or at most 15%), "+
			"sorted by profit potential.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"max_results": map[string]any{
					"type":        "integer",
					"description": "Maximum number of opportunities to return (default 10)",
				},
			},
		},
		getPolymarketOpportunities,
	)
}

func getPolymarketOpportunities(ctx context.Context, args map[string]any) (string, error) {
	maxResults := 10
	if n, ok := args["max_results"].(float64); ok && n > 0 {
		maxResults = int(n)
	}

	now := time.Now().UTC()
	q := url.Values{
		"active":       {"true"},
		"closed":       {"false"},
		"end_date_min": {now.Format("2006-01-02T15:04:05Z")},
		"end_date_max": {now.Add(time.Duration(polymarketMaxHours) * time.Hour).Format("2006-01-02T15:04:05Z")},
		"order":        {"endDate"},
		"ascending":    {"true"},
		"limit":        {strconv.Itoa(polymarketFetchLimit)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, polymarketAPIURL+"/markets?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := slowClient.Do(req)
	if err != nil {
		return fmt.Sprintf("Error fetching Polymarket data: %v", err), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("Error fetching Polymarket data: status %d", resp.StatusCode), nil
	}

	var markets []gammaMarket
	if err := json.NewDecoder(resp.Body).Decode(&markets); err != nil {
		return fmt.Sprintf("Error fetching Polymarket data: %v", err), nil
	}

	var opportunities []marketOpportunity
	for _, m := range markets {
		opp := parseMarket(m, now)
		if isOpportunity(opp) {
			opportunities = append(opportunities, opp)
		}
	}
	if len(opportunities) == 0 {
		return "No high-confidence trading opportunities found at this time. Try again later or adjust the filters.", nil
	}

	sort.Slice(opportunities, func(i, j int) bool {
		return opportunities[i].ProfitPct > opportunities[j].ProfitPct
	})
	if len(opportunities) > maxResults {
		opportunities = opportunities[:maxResults]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d high-confidence opportunities:\n\n", len(opportunities))
	for i, m := range opportunities {
		profit100 := (1 - m.BuyPrice) / m.BuyPrice * 100
		marketURL := ""
		if m.Slug != "" {
			marketURL = "https://polymarket.com/event/" + m.Slug
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, m.Question)
		fmt.Fprintf(&b, "   Buy %s at $%.2f (probability: %.0f%%)\n", m.RecommendedSide, m.BuyPrice, m.BuyPrice*100)
		fmt.Fprintf(&b, "   Potential profit: %.1f%% ($%.2f on $100 bet)\n", m.ProfitPct, profit100)
		fmt.Fprintf(&b, "   Ends in: %.1fh\n", m.HoursRemaining)
		fmt.Fprintf(&b, "   %s\n\n", marketURL)
	}
	b.WriteString("Note: profit assumes the market resolves in your favor. Higher profit % = lower win probability.")
	return b.String(), nil
}

// parseMarket extracts prices and deadline from a raw Gamma market. The
// outcomePrices field arrives either as a JSON array or as a JSON string
// containing one.
func parseMarket(m gammaMarket, now time.Time) marketOpportunity {
	opp := marketOpportunity{Question: m.Question, Slug: m.Slug}

	prices := decodeOutcomePrices(m.OutcomePrices)
	if len(prices) >= 2 {
		opp.YesPrice, opp.NoPrice = prices[0], prices[1]
		opp.HasPrices = true
		if opp.YesPrice >= 0.5 {
			opp.RecommendedSide = "YES"
			opp.BuyPrice = opp.YesPrice
		} else {
			opp.RecommendedSide = "NO"
			opp.BuyPrice = opp.NoPrice
		}
		if opp.BuyPrice > 0 {
			opp.ProfitPct = (1 - opp.BuyPrice) / opp.BuyPrice * 100
		}
	}

	endStr := m.EndDateISO
	if endStr == "" {
		endStr = m.EndDate
	}
	if endStr != "" {
		if end, err := parseEndDate(endStr); err == nil {
			opp.HoursRemaining = math.Max(0, end.Sub(now).Hours())
		}
	}
	return opp
}

func decodeOutcomePrices(raw json.RawMessage) []float64 {
	if len(raw) == 0 {
		return nil
	}
	var arr []string
	if err := json.Unmarshal(raw, &arr); err != nil {
		// Try the string-wrapped form.
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		if err := json.Unmarshal([]byte(s), &arr); err != nil {
			return nil
		}
	}
	prices := make([]float64, 0, len(arr))
	for _, p := range arr {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil
		}
		prices = append(prices, f)
	}
	return prices
}

func parseEndDate(s string) (time.Time, error) {
	if !strings.Contains(s, "T") && len(s) == 10 {
		return time.Parse(time.RFC3339, s+"T23:59:59+00:00")
	}
	return time.Parse(time.RFC3339, strings.Replace(s, "Z", "+00:00", 1))
}

// isOpportunity applies the extremity, deadline and sanity filters.
func isOpportunity(m marketOpportunity) bool {
	if !m.HasPrices {
		return false
	}
	if m.HoursRemaining < polymarketMinHours {
		return false
	}
	if math.Abs(m.YesPrice-0.5) < polymarketMinExtreme-0.5 {
		return false
	}
	if m.BuyPrice >= polymarketPriceCeil || m.BuyPrice <= polymarketPriceFloor {
		return false
	}
	return true
}
