// Package notify implements the bounded, prioritized notification
// queue that surfaces workflow outcomes to the user.
//
// At most a handful of toasts are visible at once. Arrivals beyond
// capacity queue in priority order, same-category toasts displace each
// other, and high-priority toasts can evict a lower one outright.
// Duplicates arriving inside a short grouping window collapse into the
// existing toast with a "(N similar)" marker instead of stacking.
//
// Rendering is not this package's job: a pluggable Presenter receives
// show/update/dismiss callbacks. The default presenter just logs.
package notify
