package safe

import "fmt"

// crc16Init and crc16Poly parameterize the CRC-16/CCITT-FALSE checksum ESA
// uses for the product unique identifier: polynomial 0x1021, MSB first, no
// reflection, no final xor.
const (
	crc16Init = 0xFFFF
	crc16Poly = 0x1021
)

// ProductIdentifier derives the four-character unique identifier of a SAFE
// product from its manifest bytes.
func ProductIdentifier(manifest []byte) string {
	return fmt.Sprintf("%04X", crc16(manifest))
}

func crc16(data []byte) uint16 {
	crc := uint16(crc16Init)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ crc16Poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
