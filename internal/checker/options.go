package checker

func getStringOption(options map[string]interface{}, key, defaultValue string) string {
	if value, ok := options[key].(string); ok && value != "" {
		return value
	}
	return defaultValue
}

func getIntOption(options map[string]interface{}, key string, defaultValue int) int {
	// JSON decoding hands numbers over as float64.
	if value, ok := options[key].(float64); ok {
		return int(value)
	}
	if value, ok := options[key].(int); ok {
		return value
	}
	return defaultValue
}
