package media

const (
	markerSOI  = 0xD8
	markerSOS  = 0xDA
	markerAPP1 = 0xE1
	markerIPTC = 0xED
	markerCOM  = 0xFE
)

// stripMetadata drops the EXIF/XMP (APP1), IPTC (APP13) and comment segments of a
// JPEG, which is where cameras write GPS coordinates and device details.
// Everything from the start of scan onwards is copied untouched.
// It reports false when the marker sequence cannot be walked.
func stripMetadata(data []byte) ([]byte, bool) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, false
	}
	out := make([]byte, 0, len(data))
	out = append(out, data[:2]...)
	for i := 2; i+4 <= len(data); {
		if data[i] != 0xFF {
			return nil, false
		}
		marker := data[i+1]
		switch {
		case marker == 0xFF:
			// fill byte
			i++
			continue
		case marker == markerSOS:
			return append(out, data[i:]...), true
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			out = append(out, data[i:i+2]...)
			i += 2
			continue
		}
		length := int(data[i+2])<<8 | int(data[i+3])
		end := i + 2 + length
		if length < 2 || end > len(data) {
			return nil, false
		}
		if marker != markerAPP1 && marker != markerIPTC && marker != markerCOM {
			out = append(out, data[i:end]...)
		}
		i = end
	}
	return nil, false
}
