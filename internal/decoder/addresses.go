// Package decoder converts a raw 64 KiB Game Boy RAM image into the
// structured game-state document. Decoding is pure: no I/O, no clock, no
// randomness. The same RAM always yields a bit-identical document.
package decoder

// RAMSize is the full addressable Game Boy memory image the emulator exposes.
const RAMSize = 0x10000

// Work-RAM addresses (Pokémon Red, English release).
const (
	addrTileMap      = 0xC3A0 // 20x18 background tilemap
	addrSpriteData   = 0xC100 // 16 sprite slots x 16 bytes; slot 0 is the player
	spriteSlotSize   = 0x10
	addrPlayerFacing = 0xC109 // sprite 0 facing byte

	addrEnemyMon  = 0xCFE5 // battle struct of the opposing Pokémon
	addrBattleMon = 0xD014 // battle struct of the player's active Pokémon

	addrPlayerStatMods = 0xCD1A // atk, def, spd, spc, acc, eva (raw 1..13, neutral 7)
	addrEnemyStatMods  = 0xCD2E

	addrIsInBattle = 0xD057 // 0 none, 1 wild, 2 trainer

	addrCurrentMenuItem = 0xCC26
	addrJoyIgnore       = 0xCD6B
	addrTextBoxID       = 0xD125

	addrPlayerName = 0xD158 // 11 bytes, 0x50-terminated
	addrPartyCount = 0xD163
	addrPartyMons  = 0xD16B // 6 x 44-byte party structs
	partyMonSize   = 44

	addrPokedexOwned = 0xD2F7 // 19-byte bitfield
	addrPokedexSeen  = 0xD30A // 19-byte bitfield
	pokedexBytes     = 19

	addrBagItemCount = 0xD31D
	addrBagItems     = 0xD31E // (id, qty) pairs terminated by 0xFF
	maxBagSlots      = 20

	addrMoney  = 0xD347 // 3 BCD bytes, 6 decimal digits
	addrBadges = 0xD356

	addrCurMap  = 0xD35E
	addrPlayerY = 0xD361
	addrPlayerX = 0xD362

	addrNumWarps = 0xD3AE
	addrWarps    = 0xD3AF // 4 bytes each: y, x, destWarp, destMap
	maxWarps     = 32

	addrGrassRate = 0xD887

	addrPlayTimeHours   = 0xDA41
	addrPlayTimeMinutes = 0xDA43
	addrPlayTimeSeconds = 0xDA44
)

// Tilemap geometry.
const (
	tileMapCols = 20
	tileMapRows = 18
)

// Box-drawing and cursor tiles.
const (
	tileBoxTopLeft     = 0x79
	tileBoxHorizontal  = 0x7A
	tileBoxTopRight    = 0x7B
	tileBoxVertical    = 0x7C
	tileBoxBottomLeft  = 0x7D
	tileBoxBottomRight = 0x7E
	tileCursor         = 0xED
)

// dialogueBoxRow is the tilemap row where the standard dialogue box's
// top-left corner sits; text occupies rows 13–16, columns 1–18.
const (
	dialogueBoxRow     = 12
	dialogueTextTop    = 13
	dialogueTextBottom = 16
)

// Battle-struct offsets shared by the player's active Pokémon and the enemy.
const (
	bsSpecies  = 0
	bsHP       = 1 // 2 bytes big-endian
	bsStatus   = 4
	bsType1    = 5
	bsType2    = 6
	bsMoves    = 8 // 4 move ids
	bsLevel    = 14
	bsMaxHP    = 15 // 2 bytes
	bsAttack   = 17
	bsDefense  = 19
	bsSpeed    = 21
	bsSpecial  = 23
	bsPP       = 25 // 4 bytes
	bsStructSz = 29
)

// Party-struct offsets (44 bytes per Pokémon).
const (
	pmSpecies = 0
	pmHP      = 1
	pmStatus  = 4
	pmType1   = 5
	pmType2   = 6
	pmMoves   = 8
	pmPP      = 29
	pmLevel   = 33
	pmMaxHP   = 34
	pmAttack  = 36
	pmDefense = 38
	pmSpeed   = 40
	pmSpecial = 42
)

func read16(ram []byte, addr int) int {
	return int(ram[addr])<<8 | int(ram[addr+1])
}

// facing maps the sprite facing byte to a direction: the hardware stores it
// in bits 2–3.
func facing(b byte) string {
	switch b & 0x0C {
	case 0x00:
		return "down"
	case 0x04:
		return "up"
	case 0x08:
		return "left"
	default:
		return "right"
	}
}

// bcd decodes n bytes of packed BCD into a decimal integer. Nibbles above 9
// are treated as 9 rather than corrupting the total.
func bcd(ram []byte, addr, n int) int {
	total := 0
	for i := 0; i < n; i++ {
		b := ram[addr+i]
		hi, lo := int(b>>4), int(b&0x0F)
		if hi > 9 {
			hi = 9
		}
		if lo > 9 {
			lo = 9
		}
		total = total*100 + hi*10 + lo
	}
	return total
}

// popCount counts set bits across a bitfield slice.
func popCount(ram []byte, addr, n int) int {
	count := 0
	for i := 0; i < n; i++ {
		b := ram[addr+i]
		for b != 0 {
			count += int(b & 1)
			b >>= 1
		}
	}
	return count
}
