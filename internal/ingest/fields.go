package ingest

// Field alias tables. Each canonical field lists every spelling accepted from
// source documents, in lookup order. Sources mix camelCase and snake_case for
// the same concepts; reconciliation happens here and nowhere else.
var (
	scaleFields = map[string][]string{
		"id":                  {"id", "scaleId", "scale_id"},
		"name":                {"name", "title"},
		"abbreviation":        {"abbreviation", "abbr", "shortName", "short_name"},
		"description":         {"description", "desc"},
		"category":            {"category"},
		"totalItems":          {"totalItems", "total_items", "itemCount", "item_count"},
		"scoringMethod":       {"scoringMethod", "scoring_method"},
		"scoreRangeMin":       {"scoreRangeMin", "score_range_min", "minScore", "min_score"},
		"scoreRangeMax":       {"scoreRangeMax", "score_range_max", "maxScore", "max_score"},
		"items":               {"items", "questions"},
		"responseGroups":      {"responseGroups", "response_groups"},
		"responseOptions":     {"responseOptions", "response_options", "options"},
		"subscales":           {"subscales", "sub_scales"},
		"interpretationRules": {"interpretationRules", "interpretation_rules", "interpretations"},
		"status":              {"status"},
		"version":             {"version"},
	}

	itemFields = map[string][]string{
		"id":            {"id", "itemId", "item_id"},
		"number":        {"number", "itemNumber", "item_number", "order"},
		"text":          {"text", "questionText", "question_text"},
		"questionType":  {"questionType", "question_type", "type"},
		"responseGroup": {"responseGroup", "response_group", "responseGroupKey", "response_group_key"},
		"reverseScored": {"reverseScored", "reverse_scored", "isReverse", "is_reverse"},
		"alert":         {"alert"},
		"options":       {"options", "responseOptions", "response_options"},
	}

	alertFields = map[string][]string{
		"threshold": {"threshold", "alertThreshold", "alert_threshold"},
		"message":   {"message", "alertMessage", "alert_message"},
	}

	optionFields = map[string][]string{
		"value": {"value", "optionValue", "option_value"},
		"label": {"label", "optionLabel", "option_label", "text"},
		"score": {"score", "scoreValue", "score_value", "points"},
		"order": {"order", "displayOrder", "display_order"},
	}

	groupFields = map[string][]string{
		"key":     {"key", "groupKey", "group_key", "id"},
		"name":    {"name", "groupName", "group_name"},
		"options": {"options", "responseOptions", "response_options"},
	}

	subscaleFields = map[string][]string{
		"id":          {"id", "subscaleId", "subscale_id", "key"},
		"name":        {"name"},
		"items":       {"items", "itemNumbers", "item_numbers"},
		"description": {"description"},
		"reliability": {"reliability", "cronbachAlpha", "cronbach_alpha"},
	}

	ruleFields = map[string][]string{
		"minScore":        {"minScore", "min_score"},
		"maxScore":        {"maxScore", "max_score"},
		"label":           {"label", "severityLabel", "severity_label"},
		"severity":        {"severity", "severityLevel", "severity_level"},
		"description":     {"description"},
		"recommendations": {"recommendations"},
		"subscaleId":      {"subscaleId", "subscale_id", "scope"},
	}

	responseFields = map[string][]string{
		"itemId":     {"itemId", "item_id"},
		"value":      {"value", "responseValue", "response_value", "answer"},
		"wasSkipped": {"wasSkipped", "was_skipped", "skipped"},
	}
)
