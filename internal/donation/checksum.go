package donation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Checksum computes the integrity hash handed to the browser alongside a
// donation set and re-verified immediately before dispatch. A mismatch means
// the underlying sales data changed between display and send.
//
// The hash is SHA-256 over a canonical JSON form: donations sorted by donor
// id, items within each donation sorted by item id, every amount rendered as
// a fixed two-decimal string. Incidental ordering from the producer therefore
// never changes the checksum; any change to an amount, donor, item, address,
// or email always does.
func Checksum(donations []Donation) string {
	canonical := make([]canonicalDonation, len(donations))
	for i, d := range donations {
		items := make([]canonicalItem, len(d.Items))
		for j, item := range d.Items {
			items[j] = canonicalItem{
				ID:    item.ID,
				Name:  item.Name,
				Total: item.Total.StringFixed(2),
			}
		}
		sort.Slice(items, func(a, b int) bool { return items[a].ID < items[b].ID })

		email := ""
		if d.Email != nil {
			email = *d.Email
		}
		canonical[i] = canonicalDonation{
			DonorID: d.DonorID,
			Name:    d.Name,
			Total:   d.Total.StringFixed(2),
			Address: d.Address,
			Email:   email,
			Items:   items,
		}
	}
	sort.Slice(canonical, func(a, b int) bool { return canonical[a].DonorID < canonical[b].DonorID })

	// Marshalling a struct slice is deterministic: field order is fixed by
	// the struct definition and both slices are sorted above.
	serialized, err := json.Marshal(canonical)
	if err != nil {
		// Only unmarshalable types can fail here and canonicalDonation has none.
		panic(err)
	}

	sum := sha256.Sum256(serialized)
	return hex.EncodeToString(sum[:])
}

type canonicalItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Total string `json:"total"`
}

type canonicalDonation struct {
	DonorID string          `json:"donorId"`
	Name    string          `json:"name"`
	Total   string          `json:"total"`
	Address string          `json:"address"`
	Email   string          `json:"email"`
	Items   []canonicalItem `json:"items"`
}
