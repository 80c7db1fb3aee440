package domain

// localShopPhotos is the fixed photo pool for shops the provider has no
// imagery for. Assignment is deterministic per (name, location) so a
// shop keeps the same photo across requests.
var localShopPhotos = []string{
	"https://images.unsplash.com/photo-1554118811-1e0d58224f24?ixlib=rb-4.0.3&ixid=M3wxMjA3fDB8MHxwaG90by1wYWdlfHx8fGVufDB8fHx8fA%3D%3D&auto=format&fit=crop&w=2940&q=80",
	"https://images.unsplash.com/photo-1600093463592-2e8d28d7f1f6?ixlib=rb-4.0.3&ixid=M3wxMjA3fDB8MHxwaG90by1wYWdlfHx8fGVufDB8fHx8fA%3D%3D&auto=format&fit=crop&w=2940&q=80",
	"https://images.unsplash.com/photo-1501339847302-ac426a4a7cbb?ixlib=rb-4.0.3&ixid=M3wxMjA3fDB8MHxwaG90by1wYWdlfHx8fGVufDB8fHx8fA%3D%3D&auto=format&fit=crop&w=2940&q=80",
	"https://images.unsplash.com/photo-1559925393-8be0ec4767c8?ixlib=rb-4.0.3&ixid=M3wxMjA3fDB8MHxwaG90by1wYWdlfHx8fGVufDB8fHx8fA%3D%3D&auto=format&fit=crop&w=2940&q=80",
	"https://images.unsplash.com/photo-1453614512568-c4024d13c247?ixlib=rb-4.0.3&ixid=M3wxMjA3fDB8MHxwaG90by1wYWdlfHx8fGVufDB8fHx8fA%3D%3D&auto=format&fit=crop&w=2940&q=80",
}

// SelectPhoto deterministically picks a photo URL for a shop from the
// fixed pool, keyed by name and location. Not cryptographic; it only
// needs a stable, roughly uniform spread.
func SelectPhoto(name, location string) string {
	hash := rollingHash(name + "-" + location)
	if hash < 0 {
		hash = -hash
	}
	return localShopPhotos[hash%int64(len(localShopPhotos))]
}

// rollingHash folds a string into acc*31 + code per code point. The
// shifted term wraps at 32 bits so the result is identical on every
// platform.
func rollingHash(s string) int64 {
	var acc int64
	for _, r := range s {
		shifted := int64(int32(acc) << 5)
		acc = int64(r) + shifted - acc
	}
	return acc
}
