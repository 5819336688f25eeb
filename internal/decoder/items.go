package decoder

import "fmt"

// Item id ranges for machines.
const (
	itemHMFirst = 0xC4 // HM01
	itemHMLast  = 0xC8 // HM05
	itemTMFirst = 0xC9 // TM01
)

// hmMoves names the field move each HM teaches, in HM order.
var hmMoves = [5]string{"Cut", "Fly", "Surf", "Strength", "Flash"}

// Healing items the battle tip generator recognises.
var healingItems = map[byte]bool{
	0x10: true, // Full Restore
	0x11: true, // Max Potion
	0x12: true, // Hyper Potion
	0x13: true, // Super Potion
	0x14: true, // Potion
}

var itemNames = map[byte]string{
	0x01: "Master Ball",
	0x02: "Ultra Ball",
	0x03: "Great Ball",
	0x04: "Poké Ball",
	0x05: "Town Map",
	0x06: "Bicycle",
	0x08: "Safari Ball",
	0x09: "Pokédex",
	0x0A: "Moon Stone",
	0x0B: "Antidote",
	0x0C: "Burn Heal",
	0x0D: "Ice Heal",
	0x0E: "Awakening",
	0x0F: "Parlyz Heal",
	0x10: "Full Restore",
	0x11: "Max Potion",
	0x12: "Hyper Potion",
	0x13: "Super Potion",
	0x14: "Potion",
	0x1D: "Escape Rope",
	0x1E: "Repel",
	0x20: "Fire Stone",
	0x21: "Thunderstone",
	0x22: "Water Stone",
	0x23: "HP Up",
	0x24: "Protein",
	0x25: "Iron",
	0x26: "Carbos",
	0x27: "Calcium",
	0x28: "Rare Candy",
	0x29: "Dome Fossil",
	0x2A: "Helix Fossil",
	0x2B: "Secret Key",
	0x2D: "Bike Voucher",
	0x2E: "X Accuracy",
	0x2F: "Leaf Stone",
	0x30: "Card Key",
	0x31: "Nugget",
	0x33: "Poké Doll",
	0x34: "Full Heal",
	0x35: "Revive",
	0x36: "Max Revive",
	0x37: "Guard Spec.",
	0x38: "Super Repel",
	0x39: "Max Repel",
	0x3A: "Dire Hit",
	0x3B: "Coin",
	0x3C: "Fresh Water",
	0x3D: "Soda Pop",
	0x3E: "Lemonade",
	0x3F: "S.S. Ticket",
	0x40: "Gold Teeth",
	0x41: "X Attack",
	0x42: "X Defend",
	0x43: "X Speed",
	0x44: "X Special",
	0x45: "Coin Case",
	0x46: "Oak's Parcel",
	0x47: "Itemfinder",
	0x48: "Silph Scope",
	0x49: "Poké Flute",
	0x4A: "Lift Key",
	0x4B: "Exp. All",
	0x4C: "Old Rod",
	0x4D: "Good Rod",
	0x4E: "Super Rod",
	0x4F: "PP Up",
	0x50: "Ether",
	0x51: "Max Ether",
	0x52: "Elixer",
	0x53: "Max Elixer",
}

// ItemName resolves an item id. TMs and HMs are named by number; anything
// else unmapped falls back to a hex placeholder.
func ItemName(id byte) string {
	if name, ok := itemNames[id]; ok {
		return name
	}
	if id >= itemHMFirst && id <= itemHMLast {
		n := int(id-itemHMFirst) + 1
		return fmt.Sprintf("HM%02d (%s)", n, hmMoves[n-1])
	}
	if id >= itemTMFirst {
		return fmt.Sprintf("TM%02d", int(id-itemTMFirst)+1)
	}
	return fmt.Sprintf("Item 0x%02X", id)
}
