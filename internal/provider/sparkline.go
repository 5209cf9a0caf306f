package provider

import "math/rand"

// The listings endpoint carries no price history, so sparklines are
// synthesized: a deterministic walk from the implied 24h-ago price to the
// current one, seeded per asset so repeated fetches draw the same shape.
const sparklinePoints = 24

func syntheticSparkline(id int64, price, change24h float64) []float64 {
	if price <= 0 {
		return nil
	}

	start := price / (1 + change24h/100)
	rng := rand.New(rand.NewSource(id))

	points := make([]float64, sparklinePoints)
	for i := range points {
		progress := float64(i) / float64(sparklinePoints-1)
		base := start + (price-start)*progress
		// Up to ±1.5% noise, except the endpoints.
		noise := 0.0
		if i > 0 && i < sparklinePoints-1 {
			noise = base * (rng.Float64() - 0.5) * 0.03
		}
		points[i] = base + noise
	}
	return points
}
