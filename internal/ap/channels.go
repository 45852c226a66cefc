package ap

// Channel/frequency arithmetic for the 2.4, 5 and 6 GHz bands.

const (
	base2GHzMHz = 2407
	base5GHzMHz = 5000
	base6GHzMHz = 5950

	channel14FrequencyMHz = 2484
)

// ChannelToFrequency converts a channel number on a band to its center
// frequency in MHz. Returns 0 for a channel the band does not define.
func ChannelToFrequency(band Band, channel int) int {
	switch band {
	case Band2GHz:
		if channel >= 1 && channel <= 13 {
			return base2GHzMHz + channel*5
		}
		if channel == 14 {
			return channel14FrequencyMHz
		}
	case Band5GHz:
		if channel >= 1 && channel <= 200 {
			return base5GHzMHz + channel*5
		}
	case Band6GHz:
		if channel >= 1 && channel <= 233 {
			return base6GHzMHz + channel*5
		}
	}
	return 0
}

// FrequencyToBand classifies a frequency in MHz. Returns 0 when the
// frequency falls outside all three bands.
func FrequencyToBand(freqMHz int) Band {
	switch {
	case freqMHz >= 2412 && freqMHz <= 2484:
		return Band2GHz
	case freqMHz >= 5160 && freqMHz <= 5885:
		return Band5GHz
	case freqMHz >= 5925 && freqMHz <= 7115:
		return Band6GHz
	default:
		return 0
	}
}

// SafeChannelFrequencies computes the set of usable center frequencies for
// the given bands: every capability channel whose frequency is not excluded
// by a coexistence restriction. Keys are frequencies in MHz.
func SafeChannelFrequencies(bands Band, cap Capability, unsafe map[int]bool) map[int]bool {
	out := make(map[int]bool)
	for _, band := range BandTypes {
		if !bands.Contains(band) {
			continue
		}
		for _, ch := range cap.Channels[band] {
			freq := ChannelToFrequency(band, ch)
			if freq == 0 || unsafe[freq] {
				continue
			}
			out[freq] = true
		}
	}
	return out
}

// HasSafeChannel reports whether at least one usable frequency exists on
// any of the given bands.
func HasSafeChannel(bands Band, cap Capability, unsafe map[int]bool) bool {
	return len(SafeChannelFrequencies(bands, cap, unsafe)) > 0
}
