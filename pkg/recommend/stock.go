package recommend

// StockFitnessProducts returns the fixed fitness wearable list used when a
// history shows fitness interest or a shopping query fails. Every call
// returns a fresh slice.
func StockFitnessProducts() []Product {
	return []Product{
		{ID: "stock-1", Title: "WHOOP 4.0 Fitness Tracker", Price: "$239.00", ImageURL: "https://images.unsplash.com/photo-1579586337278-3befd40fd17a?w=400&h=400&fit=crop", Link: "https://www.whoop.com", Source: "WHOOP"},
		{ID: "stock-2", Title: "Apple Watch Series 9", Price: "$399.00", ImageURL: "https://images.unsplash.com/photo-1523275335684-37898b6baf30?w=400&h=400&fit=crop", Link: "https://www.apple.com/apple-watch-series-9", Source: "Apple"},
		{ID: "stock-3", Title: "Fitbit Charge 6 Fitness Tracker", Price: "$159.95", ImageURL: "https://images.unsplash.com/photo-1544966503-7cc5ac882d5f?w=400&h=400&fit=crop", Link: "https://www.fitbit.com", Source: "Fitbit"},
		{ID: "stock-4", Title: "Garmin Forerunner 265", Price: "$449.99", ImageURL: "https://images.unsplash.com/photo-1575311373937-040b8e1fd5b6?w=400&h=400&fit=crop", Link: "https://www.garmin.com", Source: "Garmin"},
		{ID: "stock-5", Title: "Samsung Galaxy Watch 6", Price: "$299.99", ImageURL: "https://images.unsplash.com/photo-1523362628745-0c100150b504?w=400&h=400&fit=crop", Link: "https://www.samsung.com", Source: "Samsung"},
		{ID: "stock-6", Title: "Oura Ring Gen 3", Price: "$299.00", ImageURL: "https://images.unsplash.com/photo-1611591437281-460bfbe1220a?w=400&h=400&fit=crop", Link: "https://ouraring.com", Source: "Oura"},
		{ID: "stock-7", Title: "Polar Vantage V3", Price: "$599.95", ImageURL: "https://images.unsplash.com/photo-1579586337278-3befd40fd17a?w=400&h=400&fit=crop", Link: "https://www.polar.com", Source: "Polar"},
		{ID: "stock-8", Title: "Amazfit GTR 4", Price: "$199.99", ImageURL: "https://images.unsplash.com/photo-1523275335684-37898b6baf30?w=400&h=400&fit=crop", Link: "https://www.amazfit.com", Source: "Amazfit"},
		{ID: "stock-9", Title: "Suunto 9 Peak Pro", Price: "$549.00", ImageURL: "https://images.unsplash.com/photo-1575311373937-040b8e1fd5b6?w=400&h=400&fit=crop", Link: "https://www.suunto.com", Source: "Suunto"},
		{ID: "stock-10", Title: "Xiaomi Mi Band 8", Price: "$49.99", ImageURL: "https://images.unsplash.com/photo-1544966503-7cc5ac882d5f?w=400&h=400&fit=crop", Link: "https://www.mi.com", Source: "Xiaomi"},
	}
}
