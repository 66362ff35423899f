package bootstrapper

const DefaultClassificationIndexName = "sibling_classification_index"

var classificationIndex = map[string]interface{}{
	"settings": map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 1,
	},
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"run_id": map[string]interface{}{
				"type": "keyword",
			},
			"mode": map[string]interface{}{
				"type": "keyword",
			},
			"parent_id": map[string]interface{}{
				"type": "keyword",
			},
			"op_a": map[string]interface{}{
				"type": "keyword",
			},
			"op_b": map[string]interface{}{
				"type": "keyword",
			},
			"type": map[string]interface{}{
				"type": "keyword",
			},
			"confidence": map[string]interface{}{
				"type": "float",
			},
			"samples": map[string]interface{}{
				"type": "integer",
			},
			"order": map[string]interface{}{
				"type": "keyword",
			},
			"orderings": map[string]interface{}{
				"type": "keyword",
			},
			"distribution": map[string]interface{}{
				"type":    "object",
				"enabled": false,
			},
			"overlap_threshold": map[string]interface{}{
				"type": "float",
			},
			"indexed_at": map[string]interface{}{
				"type": "date",
			},
		},
	},
}
