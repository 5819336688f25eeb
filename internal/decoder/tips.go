package decoder

import (
	"fmt"

	"github.com/cgp/crowdplay/internal/protocol"
)

// highEncounterRate is the grass rate above which the overworld tip warns
// about wild encounters.
const highEncounterRate = 25

// generateTip produces the one-line hint embedded in every state document.
// Battle: best super-effective move, then low-HP warning, then generic.
// Overworld: first HM in the bag, then encounter-rate warning, then generic.
func generateTip(state *protocol.GameState, ram []byte) string {
	if state.Battle != nil {
		return battleTip(state.Battle, state.Inventory)
	}
	if state.Phase == protocol.PhaseDialogue {
		return "Press 'a' to advance the dialogue."
	}
	if state.Phase == protocol.PhaseMenu {
		return "Navigate the menu with the d-pad; 'a' selects and 'b' backs out."
	}
	return overworldTip(state.Inventory, ram)
}

func battleTip(b *protocol.Battle, inventory []protocol.Item) string {
	var best *protocol.Move
	for i := range b.Active.Moves {
		m := &b.Active.Moves[i]
		if m.Effectiveness > 1 && (best == nil || m.Effectiveness > best.Effectiveness) {
			best = m
		}
	}
	if best != nil {
		return fmt.Sprintf("%s is super effective against %s. Use it!", best.Name, b.Opponent.Species)
	}

	if b.Active.HPPercent < 25 {
		if hasHealingItem(inventory) {
			return fmt.Sprintf("%s is low on HP. Switch out or use a Potion.", b.Active.Species)
		}
		return fmt.Sprintf("%s is low on HP. Consider switching to a healthier party member.", b.Active.Species)
	}

	return "No clear type advantage. Lead with your strongest move."
}

func hasHealingItem(inventory []protocol.Item) bool {
	for _, item := range inventory {
		if healingItems[byte(item.ID)] {
			return true
		}
	}
	return false
}

func overworldTip(inventory []protocol.Item, ram []byte) string {
	for _, item := range inventory {
		id := byte(item.ID)
		if id >= itemHMFirst && id <= itemHMLast {
			n := int(id-itemHMFirst) + 1
			return fmt.Sprintf("HM%02d (%s) is in the bag. Teach it to a party member to use it in the field.", n, hmMoves[n-1])
		}
	}
	if int(ram[addrGrassRate]) >= highEncounterRate {
		return "Wild encounters are frequent here. Keep the party healthy."
	}
	return "Explore with the d-pad. Press 'a' to interact."
}
