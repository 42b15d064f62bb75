// Package normalize maps decoded CMS tables onto canonical PTP, MUE and
// AOC rows.
//
// Headers are resolved through per-field alias lists since the publisher
// rewords them between releases. Rows missing a required field, or whose
// code is not a plausible CPT/HCPCS code, are dropped. Provider scoping is
// inferred from file names by a Classifier. Output is sorted and
// deduplicated so a rebuild from identical bytes is reproducible.
package normalize
