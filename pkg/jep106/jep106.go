// Package jep106 decodes JEDEC JEP106 manufacturer identity codes as found in
// CoreSight peripheral ID registers.
package jep106

import "fmt"

// Manufacturer is a JEP106 registry entry.
type Manufacturer struct {
	Code         uint16 // combined code: continuation<<7 | id
	Name         string
	Abbreviation string
}

// Code combines a continuation count and a 7-bit identity into the single
// value used throughout this module.
func Code(continuation, id uint8) uint16 {
	return uint16(continuation)<<7 | uint16(id&0x7F)
}

// manufacturers holds the subset of the JEP106 registry relevant to
// microcontroller debug infrastructure.
var manufacturers = map[uint16]Manufacturer{
	Code(0, 0x01): {Name: "AMD", Abbreviation: "AMD"},
	Code(0, 0x04): {Name: "Fujitsu", Abbreviation: "Fujitsu"},
	Code(0, 0x07): {Name: "Hitachi", Abbreviation: "Hitachi"},
	Code(0, 0x09): {Name: "Intel", Abbreviation: "Intel"},
	Code(0, 0x15): {Name: "Philips Semi. (Signetics)", Abbreviation: "Philips"},
	Code(0, 0x17): {Name: "Texas Instruments", Abbreviation: "TI"},
	Code(0, 0x18): {Name: "Toshiba", Abbreviation: "Toshiba"},
	Code(0, 0x1C): {Name: "Mitsubishi", Abbreviation: "Mitsubishi"},
	Code(0, 0x1F): {Name: "Atmel", Abbreviation: "Atmel"},
	Code(0, 0x20): {Name: "STMicroelectronics", Abbreviation: "STM"},
	Code(0, 0x25): {Name: "Analog Devices", Abbreviation: "ADI"},
	Code(0, 0x2E): {Name: "Cypress", Abbreviation: "Cypress"},
	Code(0, 0x49): {Name: "Infineon", Abbreviation: "Infineon"},
	Code(0, 0x6E): {Name: "Microchip", Abbreviation: "Microchip"},
	Code(2, 0x44): {Name: "Nordic Semiconductor", Abbreviation: "Nordic"},
	Code(4, 0x3B): {Name: "ARM Ltd", Abbreviation: "ARM"},
	Code(5, 0x12): {Name: "Espressif", Abbreviation: "Espressif"},
	Code(9, 0x13): {Name: "Raspberry Pi", Abbreviation: "RPi"},
	Code(0, 0x34): {Name: "NXP (Philips)", Abbreviation: "NXP"},
	Code(1, 0x17): {Name: "Renesas", Abbreviation: "Renesas"},
	Code(0, 0x51): {Name: "Silicon Labs (Cygnal)", Abbreviation: "SiLabs"},
}

// Lookup returns manufacturer info for a combined JEP106 code. The second
// return value reports whether the code was present in the registry; callers
// always get a usable entry back.
func Lookup(code uint16) (Manufacturer, bool) {
	m, ok := manufacturers[code]
	if !ok {
		return Manufacturer{
			Code:         code,
			Name:         fmt.Sprintf("Unknown (0x%03X)", code),
			Abbreviation: "Unknown",
		}, false
	}
	m.Code = code
	return m, true
}
