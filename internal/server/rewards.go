package server

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/atinyakov/kongtze/internal/models"
)

const defaultHistoryLimit = 50

func (b *Backend) rewardBalance(w http.ResponseWriter, r *http.Request) {
	userID := principal(r).UserID
	b.mu.Lock()
	out := models.RewardBalance{Balance: b.balance(userID)}
	for _, e := range b.ledger[userID] {
		if e.Points > 0 {
			out.TotalEarned += e.Points
		}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) rewardHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	n := defaultHistoryLimit
	if limit != nil {
		if *limit < 1 {
			writeValidation(w, "query", "limit", "ensure this value is greater than or equal to 1")
			return
		}
		n = *limit
	}
	userID := principal(r).UserID

	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.ledger[userID]
	out := make([]models.Reward, 0, min(n, len(entries)))
	for i := len(entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, entries[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// giftList must be called with mu held.
func (b *Backend) giftList(tier models.GiftTier) []models.Gift {
	out := []models.Gift{}
	for _, g := range b.gifts {
		if tier == "" || g.Tier == tier {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GiftID < out[j].GiftID })
	return out
}

func (b *Backend) listGifts(w http.ResponseWriter, r *http.Request) {
	tier := models.GiftTier(r.URL.Query().Get("tier"))
	b.mu.Lock()
	out := b.giftList(tier)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) createGift(w http.ResponseWriter, r *http.Request) {
	if !principal(r).Parent {
		writeDetail(w, http.StatusForbidden, "Only parents can manage gifts")
		return
	}
	var req models.GiftCreate
	if !decode(w, r, &req) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	g := &models.Gift{
		GiftID:      b.nextID(),
		Name:        req.Name,
		Tier:        req.Tier,
		Probability: req.Probability,
		CreatedAt:   b.now(),
	}
	if req.Description != "" {
		d := req.Description
		g.Description = &d
	}
	if req.ImagePath != "" {
		p := req.ImagePath
		g.ImagePath = &p
	}
	b.gifts[g.GiftID] = g
	writeJSON(w, http.StatusCreated, *g)
}

func (b *Backend) deleteGift(w http.ResponseWriter, r *http.Request) {
	if !principal(r).Parent {
		writeDetail(w, http.StatusForbidden, "Only parents can manage gifts")
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, found := b.gifts[id]; !found {
		writeDetail(w, http.StatusNotFound, "Gift not found")
		return
	}
	delete(b.gifts, id)
	w.WriteHeader(http.StatusNoContent)
}

// luckyDraw picks a gift with probability-weighted sampling and charges
// LuckyDrawCost points.
func (b *Backend) luckyDraw(w http.ResponseWriter, r *http.Request) {
	userID := principal(r).UserID

	b.mu.Lock()
	defer b.mu.Unlock()
	current := b.balance(userID)
	if current < LuckyDrawCost {
		writeDetail(w, http.StatusBadRequest,
			fmt.Sprintf("Insufficient points. You need %d points (current: %d)", LuckyDrawCost, current))
		return
	}
	gifts := b.giftList("")
	if len(gifts) == 0 {
		writeDetail(w, http.StatusNotFound, "No gifts available in the lucky draw catalog")
		return
	}

	var total float64
	for _, g := range gifts {
		total += g.Probability
	}
	won := gifts[len(gifts)-1]
	if total > 0 {
		pick := b.rnd.Float64() * total
		for _, g := range gifts {
			if pick < g.Probability {
				won = g
				break
			}
			pick -= g.Probability
		}
	} else {
		won = gifts[b.rnd.Intn(len(gifts))]
	}

	entry := b.addReward(userID, -LuckyDrawCost, "Lucky draw - won "+won.Name)
	writeJSON(w, http.StatusOK, models.LuckyDrawResult{
		Gift:             won,
		PointsSpent:      LuckyDrawCost,
		RemainingBalance: entry.Balance,
	})
}
