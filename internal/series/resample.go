package series

// Resample aggregates s onto iv. Every period between the first and last
// observation gets a row labelled by its period end; its value is the mean of
// the non-missing observations that fall in it, or missing when none do.
//
// With fillGaps, missing observations are forward-filled before aggregation
// and empty periods carry the last known value. Gaps before the first known
// value stay missing either way.
func Resample(s MaturitySeries, iv Interval, fillGaps bool) MaturitySeries {
	obs := s.Observations
	if fillGaps {
		obs = ForwardFill(s).Observations
	}

	out := MaturitySeries{Label: s.Label}
	if len(obs) == 0 {
		return out
	}

	first := iv.PeriodEnd(obs[0].Date)
	last := iv.PeriodEnd(obs[len(obs)-1].Date)

	var (
		i     int
		carry float64
		known bool
	)
	for p := first; !p.After(last); p = iv.next(p) {
		sum, n := 0.0, 0
		for ; i < len(obs) && !obs[i].Date.After(p); i++ {
			if obs[i].Missing {
				continue
			}
			sum += obs[i].Value
			n++
			carry, known = obs[i].Value, true
		}

		o := Observation{Date: p, Missing: true}
		switch {
		case n > 0:
			o.Value, o.Missing = sum/float64(n), false
		case fillGaps && known:
			o.Value, o.Missing = carry, false
		}
		out.Observations = append(out.Observations, o)
	}
	return out
}

// ForwardFill replaces each missing observation with the last known value.
// Leading missing observations are left as they are.
func ForwardFill(s MaturitySeries) MaturitySeries {
	out := MaturitySeries{Label: s.Label, Observations: make([]Observation, len(s.Observations))}
	var (
		last  float64
		known bool
	)
	for i, o := range s.Observations {
		if o.Missing && known {
			o.Value, o.Missing = last, false
		}
		if !o.Missing {
			last, known = o.Value, true
		}
		out.Observations[i] = o
	}
	return out
}
