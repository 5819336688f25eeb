package decoder

import "strings"

// textCodes is the Gen-1 character map for tiles that render text. Unmapped
// tiles decode as spaces; the menu cursor tile decodes as '>'.
var textCodes = map[byte]rune{
	0x7F: ' ',
	0x9A: '(',
	0x9B: ')',
	0x9C: ':',
	0x9D: ';',
	0x9E: '[',
	0x9F: ']',
	0xBA: 'é',
	0xE0: '\'',
	0xE1: 'P', // PK ligature
	0xE2: 'M', // MN ligature
	0xE3: '-',
	0xE6: '?',
	0xE7: '!',
	0xE8: '.',
	0xED: '>',
	0xF2: '.',
	0xF3: '/',
	0xF4: ',',
}

func init() {
	for i := byte(0); i < 26; i++ {
		textCodes[0x80+i] = rune('A' + i)
		textCodes[0xA0+i] = rune('a' + i)
	}
	for i := byte(0); i < 10; i++ {
		textCodes[0xF6+i] = rune('0' + i)
	}
}

func tileRune(tile byte) rune {
	if r, ok := textCodes[tile]; ok {
		return r
	}
	return ' '
}

func tileAt(ram []byte, row, col int) byte {
	return ram[addrTileMap+row*tileMapCols+col]
}

// decodeTextName reads a 0x50-terminated name string.
func decodeTextName(ram []byte, addr, maxLen int) string {
	var b strings.Builder
	for i := 0; i < maxLen; i++ {
		c := ram[addr+i]
		if c == 0x50 || c == 0x00 {
			break
		}
		b.WriteRune(tileRune(c))
	}
	return strings.TrimSpace(b.String())
}

// readRow decodes tilemap columns [from, to] of one row.
func readRow(ram []byte, row, from, to int) string {
	var b strings.Builder
	for col := from; col <= to; col++ {
		b.WriteRune(tileRune(tileAt(ram, row, col)))
	}
	return strings.TrimRight(b.String(), " ")
}

// screenText extracts the dialogue box text if one is on screen: the box
// top-left tile at the dialogue row, text in rows 13–16 columns 1–18,
// joined with newlines.
func screenText(ram []byte) *string {
	if tileAt(ram, dialogueBoxRow, 0) != tileBoxTopLeft {
		return nil
	}
	var lines []string
	for row := dialogueTextTop; row <= dialogueTextBottom; row++ {
		lines = append(lines, readRow(ram, row, 1, tileMapCols-2))
	}
	// Trim trailing empty lines but keep interior blanks.
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil
	}
	joined := strings.Join(lines, "\n")
	return &joined
}

// cursorOnScreen reports whether the menu cursor tile appears anywhere on
// the tilemap.
func cursorOnScreen(ram []byte) bool {
	for row := 0; row < tileMapRows; row++ {
		for col := 0; col < tileMapCols; col++ {
			if tileAt(ram, row, col) == tileCursor {
				return true
			}
		}
	}
	return false
}

// menuBox is one detected box on the tilemap.
type menuBox struct {
	top, left, bottom, right int
}

// findMenu scans the tilemap for a box whose interior contains the cursor,
// an interactive menu as opposed to a passive text box. It walks every
// top-left corner tile, bounds the box by its matching top-right and
// bottom-left corners, and reads the interior rows.
func findMenu(ram []byte) ([]string, int, bool) {
	for row := 0; row < tileMapRows-2; row++ {
		for col := 0; col < tileMapCols-2; col++ {
			if tileAt(ram, row, col) != tileBoxTopLeft {
				continue
			}
			box, ok := boundBox(ram, row, col)
			if !ok {
				continue
			}
			lines, cursorLine := readInterior(ram, box)
			if cursorLine >= 0 {
				return lines, cursorLine, true
			}
		}
	}
	return nil, 0, false
}

func boundBox(ram []byte, top, left int) (menuBox, bool) {
	right := -1
	for col := left + 1; col < tileMapCols; col++ {
		if tileAt(ram, top, col) == tileBoxTopRight {
			right = col
			break
		}
	}
	if right < 0 {
		return menuBox{}, false
	}
	bottom := -1
	for row := top + 1; row < tileMapRows; row++ {
		if tileAt(ram, row, left) == tileBoxBottomLeft {
			bottom = row
			break
		}
	}
	if bottom < 0 {
		return menuBox{}, false
	}
	if right-left < 2 || bottom-top < 2 {
		return menuBox{}, false
	}
	return menuBox{top: top, left: left, bottom: bottom, right: right}, true
}

// readInterior returns the interior rows of a box and the index of the row
// holding the cursor, or -1 if the box has no cursor.
func readInterior(ram []byte, box menuBox) ([]string, int) {
	var lines []string
	cursorLine := -1
	for row := box.top + 1; row < box.bottom; row++ {
		line := readRow(ram, row, box.left+1, box.right-1)
		if strings.Contains(line, ">") && cursorLine < 0 {
			cursorLine = len(lines)
		}
		lines = append(lines, line)
	}
	return lines, cursorLine
}
