package config

// Default returns the built-in pipeline for the user purchase dataset. A
// config file can override any part of it; the CLI uses this wholesale when
// no config is given.
func Default() Pipeline {
	return Pipeline{
		Job: "purchase_report",
		Input: Input{
			Path: "data/purchases.csv",
		},
		Normalize: Normalize{
			DateLayout:   "2006-01-02 15:04:05",
			DateFields:   []string{"signup_time", "first_purchase_time", "last_purchase_time"},
			DeviceField:  "device",
			WeekdayField: "signup_weekday",
			MoneyFields:  []string{"total_spend"},
			IntFields:    []string{"purchase_count"},
			BoolFields:   []string{"is_promo_user"},
			Delay: Delay{
				SignupField:   "signup_time",
				PurchaseField: "first_purchase_time",
				DaysField:     "days_to_first_purchase",
				BucketField:   "purchase_delay_bucket",
			},
		},
		StoreType: StoreType{
			Field:       "store_type_counts",
			ReportTitle: "Purchases per store type",
		},
		Reports: []Report{
			{
				Title:   "Purchases by device",
				GroupBy: "device",
				Measures: []Measure{
					{Kind: "count", Name: "users"},
					{Kind: "sum", Field: "purchase_count", Name: "purchases"},
					{Kind: "mean", Field: "purchase_count", Name: "purchases_per_user"},
				},
				SortBy: "purchases",
			},
			{
				Title:   "Spend by country",
				GroupBy: "country",
				Measures: []Measure{
					{Kind: "count", Name: "users"},
					{Kind: "sum", Field: "total_spend", Name: "spend"},
					{Kind: "mean", Field: "total_spend", Name: "spend_per_user"},
				},
				SortBy: "spend",
			},
			{
				Title:   "Users by purchase delay",
				GroupBy: "purchase_delay_bucket",
				Measures: []Measure{
					{Kind: "count", Name: "users"},
					{Kind: "weighted_mean", Field: "total_spend", WeightField: "purchase_count", Name: "spend_per_purchase"},
				},
				SortBy: "users",
			},
			{
				Title:   "Promo users by device",
				GroupBy: "device",
				Measures: []Measure{
					{Kind: "count", Name: "promo_users"},
				},
				SortBy: "promo_users",
				Filter: &Filter{Field: "is_promo_user", Equals: "true"},
			},
			{
				Title:   "Non-promo users by device",
				GroupBy: "device",
				Measures: []Measure{
					{Kind: "count", Name: "organic_users"},
				},
				SortBy: "organic_users",
				Filter: &Filter{Field: "is_promo_user", Equals: "false"},
			},
		},
	}
}
