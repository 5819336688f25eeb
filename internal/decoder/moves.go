package decoder

// MoveData is one row of the Gen-1 move table.
type MoveData struct {
	Name     string
	Type     string
	Power    int
	Accuracy int
	PP       int
}

// moveTable maps move id (1–165) to its Gen-1 data. Status moves and
// fixed-damage moves carry power 0. In Gen-1 the damage category follows the
// move's type, not the move (see MoveCategory).
var moveTable = map[byte]MoveData{
	1:   {"Pound", TypeNormal, 40, 100, 35},
	2:   {"Karate Chop", TypeNormal, 50, 100, 25},
	3:   {"Double Slap", TypeNormal, 15, 85, 10},
	4:   {"Comet Punch", TypeNormal, 18, 85, 15},
	5:   {"Mega Punch", TypeNormal, 80, 85, 20},
	6:   {"Pay Day", TypeNormal, 40, 100, 20},
	7:   {"Fire Punch", TypeFire, 75, 100, 15},
	8:   {"Ice Punch", TypeIce, 75, 100, 15},
	9:   {"Thunder Punch", TypeElectric, 75, 100, 15},
	10:  {"Scratch", TypeNormal, 40, 100, 35},
	11:  {"Vise Grip", TypeNormal, 55, 100, 30},
	12:  {"Guillotine", TypeNormal, 0, 30, 5},
	13:  {"Razor Wind", TypeNormal, 80, 75, 10},
	14:  {"Swords Dance", TypeNormal, 0, 100, 30},
	15:  {"Cut", TypeNormal, 50, 95, 30},
	16:  {"Gust", TypeNormal, 40, 100, 35},
	17:  {"Wing Attack", TypeFlying, 35, 100, 35},
	18:  {"Whirlwind", TypeNormal, 0, 85, 20},
	19:  {"Fly", TypeFlying, 70, 95, 15},
	20:  {"Bind", TypeNormal, 15, 75, 20},
	21:  {"Slam", TypeNormal, 80, 75, 20},
	22:  {"Vine Whip", TypeGrass, 35, 100, 10},
	23:  {"Stomp", TypeNormal, 65, 100, 20},
	24:  {"Double Kick", TypeFighting, 30, 100, 30},
	25:  {"Mega Kick", TypeNormal, 120, 75, 5},
	26:  {"Jump Kick", TypeFighting, 70, 95, 25},
	27:  {"Rolling Kick", TypeFighting, 60, 85, 15},
	28:  {"Sand Attack", TypeNormal, 0, 100, 15},
	29:  {"Headbutt", TypeNormal, 70, 100, 15},
	30:  {"Horn Attack", TypeNormal, 65, 100, 25},
	31:  {"Fury Attack", TypeNormal, 15, 85, 20},
	32:  {"Horn Drill", TypeNormal, 0, 30, 5},
	33:  {"Tackle", TypeNormal, 35, 95, 35},
	34:  {"Body Slam", TypeNormal, 85, 100, 15},
	35:  {"Wrap", TypeNormal, 15, 85, 20},
	36:  {"Take Down", TypeNormal, 90, 85, 20},
	37:  {"Thrash", TypeNormal, 90, 100, 20},
	38:  {"Double-Edge", TypeNormal, 100, 100, 15},
	39:  {"Tail Whip", TypeNormal, 0, 100, 30},
	40:  {"Poison Sting", TypePoison, 15, 100, 35},
	41:  {"Twineedle", TypeBug, 25, 100, 20},
	42:  {"Pin Missile", TypeBug, 14, 85, 20},
	43:  {"Leer", TypeNormal, 0, 100, 30},
	44:  {"Bite", TypeNormal, 60, 100, 25},
	45:  {"Growl", TypeNormal, 0, 100, 40},
	46:  {"Roar", TypeNormal, 0, 100, 20},
	47:  {"Sing", TypeNormal, 0, 55, 15},
	48:  {"Supersonic", TypeNormal, 0, 55, 20},
	49:  {"Sonic Boom", TypeNormal, 0, 90, 20},
	50:  {"Disable", TypeNormal, 0, 55, 20},
	51:  {"Acid", TypePoison, 40, 100, 30},
	52:  {"Ember", TypeFire, 40, 100, 25},
	53:  {"Flamethrower", TypeFire, 95, 100, 15},
	54:  {"Mist", TypeIce, 0, 100, 30},
	55:  {"Water Gun", TypeWater, 40, 100, 25},
	56:  {"Hydro Pump", TypeWater, 120, 80, 5},
	57:  {"Surf", TypeWater, 95, 100, 15},
	58:  {"Ice Beam", TypeIce, 95, 100, 10},
	59:  {"Blizzard", TypeIce, 120, 90, 5},
	60:  {"Psybeam", TypePsychic, 65, 100, 20},
	61:  {"Bubble Beam", TypeWater, 65, 100, 20},
	62:  {"Aurora Beam", TypeIce, 65, 100, 20},
	63:  {"Hyper Beam", TypeNormal, 150, 90, 5},
	64:  {"Peck", TypeFlying, 35, 100, 35},
	65:  {"Drill Peck", TypeFlying, 80, 100, 20},
	66:  {"Submission", TypeFighting, 80, 80, 25},
	67:  {"Low Kick", TypeFighting, 50, 90, 20},
	68:  {"Counter", TypeFighting, 0, 100, 20},
	69:  {"Seismic Toss", TypeFighting, 0, 100, 20},
	70:  {"Strength", TypeNormal, 80, 100, 15},
	71:  {"Absorb", TypeGrass, 20, 100, 20},
	72:  {"Mega Drain", TypeGrass, 40, 100, 10},
	73:  {"Leech Seed", TypeGrass, 0, 90, 10},
	74:  {"Growth", TypeNormal, 0, 100, 40},
	75:  {"Razor Leaf", TypeGrass, 55, 95, 25},
	76:  {"Solar Beam", TypeGrass, 120, 100, 10},
	77:  {"Poison Powder", TypePoison, 0, 75, 35},
	78:  {"Stun Spore", TypeGrass, 0, 75, 30},
	79:  {"Sleep Powder", TypeGrass, 0, 75, 15},
	80:  {"Petal Dance", TypeGrass, 70, 100, 20},
	81:  {"String Shot", TypeBug, 0, 95, 40},
	82:  {"Dragon Rage", TypeDragon, 0, 100, 10},
	83:  {"Fire Spin", TypeFire, 15, 70, 15},
	84:  {"Thunder Shock", TypeElectric, 40, 100, 30},
	85:  {"Thunderbolt", TypeElectric, 95, 100, 15},
	86:  {"Thunder Wave", TypeElectric, 0, 100, 20},
	87:  {"Thunder", TypeElectric, 120, 70, 10},
	88:  {"Rock Throw", TypeRock, 50, 65, 15},
	89:  {"Earthquake", TypeGround, 100, 100, 10},
	90:  {"Fissure", TypeGround, 0, 30, 5},
	91:  {"Dig", TypeGround, 100, 100, 10},
	92:  {"Toxic", TypePoison, 0, 85, 10},
	93:  {"Confusion", TypePsychic, 50, 100, 25},
	94:  {"Psychic", TypePsychic, 90, 100, 10},
	95:  {"Hypnosis", TypePsychic, 0, 60, 20},
	96:  {"Meditate", TypePsychic, 0, 100, 40},
	97:  {"Agility", TypePsychic, 0, 100, 30},
	98:  {"Quick Attack", TypeNormal, 40, 100, 30},
	99:  {"Rage", TypeNormal, 20, 100, 20},
	100: {"Teleport", TypePsychic, 0, 100, 20},
	101: {"Night Shade", TypeGhost, 0, 100, 15},
	102: {"Mimic", TypeNormal, 0, 100, 10},
	103: {"Screech", TypeNormal, 0, 85, 40},
	104: {"Double Team", TypeNormal, 0, 100, 15},
	105: {"Recover", TypeNormal, 0, 100, 20},
	106: {"Harden", TypeNormal, 0, 100, 30},
	107: {"Minimize", TypeNormal, 0, 100, 20},
	108: {"Smokescreen", TypeNormal, 0, 100, 20},
	109: {"Confuse Ray", TypeGhost, 0, 100, 10},
	110: {"Withdraw", TypeWater, 0, 100, 40},
	111: {"Defense Curl", TypeNormal, 0, 100, 40},
	112: {"Barrier", TypePsychic, 0, 100, 30},
	113: {"Light Screen", TypePsychic, 0, 100, 30},
	114: {"Haze", TypeIce, 0, 100, 30},
	115: {"Reflect", TypePsychic, 0, 100, 20},
	116: {"Focus Energy", TypeNormal, 0, 100, 30},
	117: {"Bide", TypeNormal, 0, 100, 10},
	118: {"Metronome", TypeNormal, 0, 100, 10},
	119: {"Mirror Move", TypeFlying, 0, 100, 20},
	120: {"Self-Destruct", TypeNormal, 130, 100, 5},
	121: {"Egg Bomb", TypeNormal, 100, 75, 10},
	122: {"Lick", TypeGhost, 20, 100, 30},
	123: {"Smog", TypePoison, 20, 70, 20},
	124: {"Sludge", TypePoison, 65, 100, 20},
	125: {"Bone Club", TypeGround, 65, 85, 20},
	126: {"Fire Blast", TypeFire, 120, 85, 5},
	127: {"Waterfall", TypeWater, 80, 100, 15},
	128: {"Clamp", TypeWater, 35, 75, 10},
	129: {"Swift", TypeNormal, 60, 100, 20},
	130: {"Skull Bash", TypeNormal, 100, 100, 15},
	131: {"Spike Cannon", TypeNormal, 20, 100, 15},
	132: {"Constrict", TypeNormal, 10, 100, 35},
	133: {"Amnesia", TypePsychic, 0, 100, 20},
	134: {"Kinesis", TypePsychic, 0, 80, 15},
	135: {"Soft-Boiled", TypeNormal, 0, 100, 10},
	136: {"High Jump Kick", TypeFighting, 85, 90, 20},
	137: {"Glare", TypeNormal, 0, 75, 30},
	138: {"Dream Eater", TypePsychic, 100, 100, 15},
	139: {"Poison Gas", TypePoison, 0, 55, 40},
	140: {"Barrage", TypeNormal, 15, 85, 20},
	141: {"Leech Life", TypeBug, 20, 100, 15},
	142: {"Lovely Kiss", TypeNormal, 0, 75, 10},
	143: {"Sky Attack", TypeFlying, 140, 90, 5},
	144: {"Transform", TypeNormal, 0, 100, 10},
	145: {"Bubble", TypeWater, 20, 100, 30},
	146: {"Dizzy Punch", TypeNormal, 70, 100, 10},
	147: {"Spore", TypeGrass, 0, 100, 15},
	148: {"Flash", TypeNormal, 0, 70, 20},
	149: {"Psywave", TypePsychic, 0, 80, 15},
	150: {"Splash", TypeNormal, 0, 100, 40},
	151: {"Acid Armor", TypePoison, 0, 100, 40},
	152: {"Crabhammer", TypeWater, 90, 85, 10},
	153: {"Explosion", TypeNormal, 170, 100, 5},
	154: {"Fury Swipes", TypeNormal, 18, 80, 15},
	155: {"Bonemerang", TypeGround, 50, 90, 10},
	156: {"Rest", TypePsychic, 0, 100, 10},
	157: {"Rock Slide", TypeRock, 75, 90, 10},
	158: {"Hyper Fang", TypeNormal, 80, 90, 15},
	159: {"Sharpen", TypeNormal, 0, 100, 30},
	160: {"Conversion", TypeNormal, 0, 100, 30},
	161: {"Tri Attack", TypeNormal, 80, 100, 10},
	162: {"Super Fang", TypeNormal, 0, 90, 10},
	163: {"Slash", TypeNormal, 70, 100, 20},
	164: {"Substitute", TypeNormal, 0, 100, 10},
	165: {"Struggle", TypeNormal, 50, 100, 10},
}

// MoveByID resolves a move id. Unknown ids decode as a placeholder rather
// than failing the whole document.
func MoveByID(id byte) (MoveData, bool) {
	m, ok := moveTable[id]
	return m, ok
}

// physicalTypes is Gen-1's category split: damage category follows the type.
var physicalTypes = map[string]bool{
	TypeNormal:   true,
	TypeFighting: true,
	TypeFlying:   true,
	TypeGround:   true,
	TypeRock:     true,
	TypeBug:      true,
	TypeGhost:    true,
	TypePoison:   true,
}

// MoveCategory reports physical, special or status for a move.
func MoveCategory(m MoveData) string {
	if m.Power == 0 {
		return "status"
	}
	if physicalTypes[m.Type] {
		return "physical"
	}
	return "special"
}
