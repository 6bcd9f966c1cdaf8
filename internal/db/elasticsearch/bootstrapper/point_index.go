package bootstrapper

// pointIndex maps one document per point. Tags are keywords; fields keep
// whatever type the first document gives them.
var pointIndex = map[string]interface{}{
	"settings": map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 1,
	},
	"mappings": map[string]interface{}{
		"dynamic_templates": []interface{}{
			map[string]interface{}{
				"tags_as_keywords": map[string]interface{}{
					"path_match": "tags.*",
					"mapping": map[string]interface{}{
						"type": "keyword",
					},
				},
			},
		},
		"properties": map[string]interface{}{
			"@timestamp": map[string]interface{}{
				"type": "date_nanos",
			},
			"measurement": map[string]interface{}{
				"type": "keyword",
			},
			"tags": map[string]interface{}{
				"type": "object",
			},
			"fields": map[string]interface{}{
				"type": "object",
			},
		},
	},
}
