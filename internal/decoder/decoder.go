package decoder

import (
	"math"

	"github.com/cgp/crowdplay/internal/protocol"
)

// badgeNames in bit order of the badge byte.
var badgeNames = [8]string{
	"Boulder Badge", "Cascade Badge", "Thunder Badge", "Rainbow Badge",
	"Soul Badge", "Marsh Badge", "Volcano Badge", "Earth Badge",
}

// Decode converts one RAM image into a game-state document for the given
// turn. It never fails: impossible RAM shapes decode to safe defaults.
// Per-agent overlay fields (score, rank, streak) and secondsRemaining are
// zero; the game-state service fills them in.
func Decode(ram []byte, gameID string, turn int) *protocol.GameState {
	ram = normalize(ram)
	_ = gameID // carried in the publish envelope, not the document

	phase := detectPhase(ram)
	state := &protocol.GameState{
		Turn:             turn,
		Phase:            phase,
		AvailableActions: protocol.AvailableActions(),
		Player:           decodePlayer(ram),
		Party:            decodeParty(ram),
		Inventory:        decodeInventory(ram),
		Progress:         decodeProgress(ram),
		ScreenText:       screenText(ram),
	}

	if lines, cursorLine, ok := findMenu(ram); ok {
		state.MenuState = &protocol.Menu{Lines: lines, CursorLine: cursorLine}
	}

	if phase == protocol.PhaseBattle {
		state.Battle = decodeBattle(ram)
	} else {
		state.Overworld = decodeOverworld(ram)
	}

	state.Tip = generateTip(state, ram)
	return state
}

// normalize pads or copies the input so every address is readable. The
// decoder never mutates its input.
func normalize(ram []byte) []byte {
	out := make([]byte, RAMSize)
	copy(out, ram)
	return out
}

// detectPhase applies the documented priority: battle byte, then menu
// cursor, then dialogue indicators, else overworld.
func detectPhase(ram []byte) string {
	if ram[addrIsInBattle] != 0 {
		return protocol.PhaseBattle
	}
	if cursorOnScreen(ram) {
		return protocol.PhaseMenu
	}
	if ram[addrTextBoxID] != 0 || ram[addrJoyIgnore] != 0 {
		return protocol.PhaseDialogue
	}
	return protocol.PhaseOverworld
}

func decodePlayer(ram []byte) protocol.Player {
	return protocol.Player{
		Name: decodeTextName(ram, addrPlayerName, 11),
		Position: protocol.Position{
			MapID:  int(ram[addrCurMap]),
			X:      int(ram[addrPlayerX]),
			Y:      int(ram[addrPlayerY]),
			Facing: facing(ram[addrPlayerFacing]),
		},
	}
}

func decodeProgress(ram []byte) protocol.Progress {
	badges := ram[addrBadges]
	var names []string
	for i := 0; i < 8; i++ {
		if badges&(1<<i) != 0 {
			names = append(names, badgeNames[i])
		}
	}
	return protocol.Progress{
		Badges:       popCount(ram, addrBadges, 1),
		BadgeNames:   names,
		PokedexOwned: popCount(ram, addrPokedexOwned, pokedexBytes),
		PokedexSeen:  popCount(ram, addrPokedexSeen, pokedexBytes),
		Money:        bcd(ram, addrMoney, 3),
		PlayTime: protocol.PlayTime{
			Hours:   int(ram[addrPlayTimeHours]),
			Minutes: int(ram[addrPlayTimeMinutes]),
			Seconds: int(ram[addrPlayTimeSeconds]),
		},
	}
}

func decodeParty(ram []byte) []protocol.Pokemon {
	count := int(ram[addrPartyCount])
	if count > 6 {
		count = 6
	}
	party := make([]protocol.Pokemon, 0, count)
	for i := 0; i < count; i++ {
		base := addrPartyMons + i*partyMonSize
		party = append(party, decodePartyMon(ram, base))
	}
	return party
}

func decodePartyMon(ram []byte, base int) protocol.Pokemon {
	maxHP := atLeastOne(read16(ram, base+pmMaxHP))
	hp := clamp(read16(ram, base+pmHP), 0, maxHP)
	return protocol.Pokemon{
		Species:   SpeciesName(ram[base+pmSpecies]),
		Level:     clamp(atLeastOne(int(ram[base+pmLevel])), 1, 100),
		HP:        hp,
		MaxHP:     maxHP,
		HPPercent: hpPercent(hp, maxHP),
		Status:    statusName(ram[base+pmStatus]),
		Types:     decodeTypes(ram[base+pmType1], ram[base+pmType2]),
		Moves:     decodeMoves(ram, base+pmMoves, base+pmPP, nil),
		Stats:     decodeStats(ram, base+pmAttack),
	}
}

func decodeBattle(ram []byte) *protocol.Battle {
	kind := "wild"
	if ram[addrIsInBattle] == 2 {
		kind = "trainer"
	}

	opponent := decodeBattler(ram, addrEnemyMon, nil)
	active := decodeBattler(ram, addrBattleMon, opponent.Types)

	return &protocol.Battle{
		Kind:      kind,
		Active:    active,
		Opponent:  opponent,
		Modifiers: decodeModifiers(ram, addrPlayerStatMods),
	}
}

// decodeBattler reads a battle struct. When defenderTypes is non-nil, each
// move carries its effectiveness against those types.
func decodeBattler(ram []byte, base int, defenderTypes []string) protocol.Pokemon {
	maxHP := atLeastOne(read16(ram, base+bsMaxHP))
	hp := clamp(read16(ram, base+bsHP), 0, maxHP)
	return protocol.Pokemon{
		Species:   SpeciesName(ram[base+bsSpecies]),
		Level:     clamp(atLeastOne(int(ram[base+bsLevel])), 1, 100),
		HP:        hp,
		MaxHP:     maxHP,
		HPPercent: hpPercent(hp, maxHP),
		Status:    statusName(ram[base+bsStatus]),
		Types:     decodeTypes(ram[base+bsType1], ram[base+bsType2]),
		Moves:     decodeMoves(ram, base+bsMoves, base+bsPP, defenderTypes),
		Stats:     decodeStats(ram, base+bsAttack),
	}
}

func decodeMoves(ram []byte, moveAddr, ppAddr int, defenderTypes []string) []protocol.Move {
	var moves []protocol.Move
	for i := 0; i < 4; i++ {
		id := ram[moveAddr+i]
		if id == 0 {
			continue
		}
		data, ok := MoveByID(id)
		if !ok {
			continue
		}
		eff := 1.0
		if defenderTypes != nil {
			eff = MoveEffectiveness(data.Type, defenderTypes)
		}
		moves = append(moves, protocol.Move{
			Name:          data.Name,
			Type:          data.Type,
			Power:         data.Power,
			Accuracy:      data.Accuracy,
			PP:            int(ram[ppAddr+i] & 0x3F), // high bits hold PP Up count
			MaxPP:         data.PP,
			Category:      MoveCategory(data),
			Effectiveness: eff,
		})
	}
	return moves
}

func decodeTypes(t1, t2 byte) []string {
	name1 := TypeName(t1)
	name2 := TypeName(t2)
	if name1 == name2 {
		return []string{name1}
	}
	return []string{name1, name2}
}

// decodeStats reads attack/defense/speed/special starting at addr. Gen-1's
// single Special stat is reported as both specialAttack and specialDefense.
func decodeStats(ram []byte, addr int) protocol.Stats {
	attack := atLeastOne(read16(ram, addr))
	defense := atLeastOne(read16(ram, addr+2))
	speed := atLeastOne(read16(ram, addr+4))
	special := atLeastOne(read16(ram, addr+6))
	return protocol.Stats{
		Attack:         attack,
		Defense:        defense,
		Speed:          speed,
		SpecialAttack:  special,
		SpecialDefense: special,
	}
}

// decodeModifiers converts raw stage bytes (neutral 7) to the user-facing
// [-6, +6] range.
func decodeModifiers(ram []byte, addr int) protocol.StatModifiers {
	stage := func(offset int) int {
		raw := int(ram[addr+offset])
		if raw == 0 {
			raw = 7 // uninitialised RAM decodes as neutral
		}
		return clamp(raw-7, -6, 6)
	}
	return protocol.StatModifiers{
		Attack:   stage(0),
		Defense:  stage(1),
		Speed:    stage(2),
		Special:  stage(3),
		Accuracy: stage(4),
		Evasion:  stage(5),
	}
}

func decodeInventory(ram []byte) []protocol.Item {
	count := int(ram[addrBagItemCount])
	if count > maxBagSlots {
		count = maxBagSlots
	}
	items := make([]protocol.Item, 0, count)
	for i := 0; i < count; i++ {
		id := ram[addrBagItems+i*2]
		if id == 0xFF {
			break
		}
		items = append(items, protocol.Item{
			ID:       int(id),
			Name:     ItemName(id),
			Quantity: int(ram[addrBagItems+i*2+1]),
		})
	}
	return items
}

func decodeOverworld(ram []byte) *protocol.Overworld {
	var sprites []protocol.Sprite
	for i := 1; i < 16; i++ {
		base := addrSpriteData + i*spriteSlotSize
		pic := ram[base]
		if pic == 0 {
			continue
		}
		sprites = append(sprites, protocol.Sprite{
			Index:     i,
			PictureID: int(pic),
			Y:         int(ram[base+4]),
			X:         int(ram[base+6]),
			Facing:    facing(ram[base+9]),
		})
	}

	nWarps := int(ram[addrNumWarps])
	if nWarps > maxWarps {
		nWarps = maxWarps
	}
	var warps []protocol.Warp
	for i := 0; i < nWarps; i++ {
		base := addrWarps + i*4
		warps = append(warps, protocol.Warp{
			Y:        int(ram[base]),
			X:        int(ram[base+1]),
			DestWarp: int(ram[base+2]),
			DestMap:  int(ram[base+3]),
		})
	}

	return &protocol.Overworld{
		MapID:         int(ram[addrCurMap]),
		Sprites:       sprites,
		Warps:         warps,
		EncounterRate: int(ram[addrGrassRate]),
	}
}

// statusName decodes the Gen-1 status byte: bits 0–2 hold the sleep counter,
// bit 3 freeze, bit 4 burn, bit 5 paralysis, bit 6 poison.
func statusName(b byte) string {
	switch {
	case b&0x07 != 0:
		return "sleep"
	case b&0x08 != 0:
		return "freeze"
	case b&0x10 != 0:
		return "burn"
	case b&0x20 != 0:
		return "paralysis"
	case b&0x40 != 0:
		return "poison"
	default:
		return "healthy"
	}
}

// hpPercent rounds to one decimal place.
func hpPercent(hp, maxHP int) float64 {
	return math.Round(float64(hp)/float64(maxHP)*1000) / 10
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
