package mtc

// EncodeMMCStart returns the MMC START SysEx message.
func EncodeMMCStart() []byte {
	return []byte{0xf0, 0x7f, 0x7f, 0x06, 0x02, 0xf7}
}

// EncodeMMCStop returns the MMC STOP SysEx message.
func EncodeMMCStop() []byte {
	return []byte{0xf0, 0x7f, 0x7f, 0x06, 0x01, 0xf7}
}

// EncodeMMCLocate returns the MMC LOCATE SysEx message targeting the
// given SMPTE time: fps is the rate id (FPS24/FPS25/FPS30), hh/mm/ss
// are hours/minutes/seconds, ff is the frame number, sf the subframe.
func EncodeMMCLocate(fps FPS, hh, mm, ss, ff, sf byte) []byte {
	return []byte{
		0xf0, 0x7f, 0x7f, 0x06, 0x44, 0x06, 0x01,
		byte(fps)<<5 | hh, mm, ss, ff, sf,
		0xf7,
	}
}

// EncodeFullFrame returns the MTC full-frame SysEx message locking a
// receiver to the given SMPTE time.
func EncodeFullFrame(fps FPS, hh, mm, ss, ff byte) []byte {
	return []byte{
		0xf0, 0x7f, 0x7f, 0x01, 0x01,
		byte(fps)<<5 | hh, mm, ss, ff,
		0xf7,
	}
}

// SplitPos decomposes a position expressed in Sec units into SMPTE
// hours/minutes/seconds/frames at the given rate, the inverse of the
// arithmetic Parser.FullFrame and QuarterFrame perform when
// reassembling a position from encoded fields.
func SplitPos(pos uint32, fps FPS) (hh, mm, ss, ff byte) {
	framesPerSec := frameRate(fps)
	totalFrames := pos / (Sec / framesPerSec)
	frames := totalFrames % framesPerSec
	totalSec := totalFrames / framesPerSec
	secs := totalSec % 60
	totalMin := totalSec / 60
	mins := totalMin % 60
	hours := (totalMin / 60) % 24
	return byte(hours), byte(mins), byte(secs), byte(frames)
}

func frameRate(fps FPS) uint32 {
	switch fps {
	case FPS24:
		return 24
	case FPS25:
		return 25
	case FPS30:
		return 30
	default:
		return 30
	}
}
