package category

import "math"

// Weather codes used by the imputation chain. Code 0 marks a missing
// observation; real codes start at 1.
const (
	CodeMissing = 0
	CodeCloudy  = 3
	CodeRain    = 12
	CodeSnow    = 14
	CodeUnknown = 99
)

// SnowMaxTemperature is the highest temperature (°C) at which precipitation
// is imputed as snow.
const SnowMaxTemperature = 2.0

// ImputeWeatherCode returns code unchanged when present. Otherwise the rules
// are evaluated strictly in order: snow, rain, cloudy, unknown. A missing
// temperature with positive precipitation is rain.
func ImputeWeatherCode(code int, precipitation, temperature float64) int {
	if code != CodeMissing {
		return code
	}
	switch {
	case precipitation > 0 && temperature <= SnowMaxTemperature:
		return CodeSnow
	case precipitation > 0:
		return CodeRain
	case precipitation == 0:
		return CodeCloudy
	case math.IsNaN(precipitation):
		return CodeUnknown
	}
	// negative precipitation is not a valid reading
	return CodeUnknown
}
