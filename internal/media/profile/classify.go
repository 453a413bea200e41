package profile

import "math"

type classRule struct {
	class Class
	sizes [][2]int
	rates []float64
	scan  ScanType
}

var classRules = []classRule{
	{class: ClassPALDV, sizes: [][2]int{{720, 576}}, rates: []float64{25}, scan: ScanInterlaced},
	{class: ClassNTSCDV, sizes: [][2]int{{720, 480}, {720, 486}}, rates: []float64{29.97}, scan: ScanInterlaced},
	{class: ClassHDV1080i, sizes: [][2]int{{1440, 1080}, {1920, 1080}}, rates: []float64{25, 29.97}, scan: ScanInterlaced},
	{class: ClassHDV720p, sizes: [][2]int{{1280, 720}}, rates: []float64{25, 29.97, 50, 59.94}, scan: ScanProgressive},
}

// Classify maps resolution, frame rate, and scan type onto a known source
// family. Any combination outside the table is ClassUnclassified.
func Classify(p FormatProfile) Class {
	fps := p.FrameRate()
	for _, rule := range classRules {
		if p.Scan != rule.scan || !matchesSize(rule.sizes, p.Width, p.Height) {
			continue
		}
		for _, rate := range rule.rates {
			if math.Abs(fps-rate) < 0.05 {
				return rule.class
			}
		}
	}
	return ClassUnclassified
}

func matchesSize(sizes [][2]int, width, height int) bool {
	for _, size := range sizes {
		if size[0] == width && size[1] == height {
			return true
		}
	}
	return false
}
