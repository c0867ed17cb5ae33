/*
Package dsl parses the textual graph description consumed by the resolver.

A script declares composite components and wires top-level instances:

	component PrefixLines(prefix) in -> out {
	  prep : text.Prefix(prefix=prefix)
	  .in > prep.in
	  prep.out > .out
	}

	src : io.FileLines(filename="data.txt")
	fmt : PrefixLines(prefix="--- ")
	dst : flow.Collect()

	src.out > fmt.in
	fmt.out > dst.in

'>' always means token flow from left to right. A literal on the left of
'>' is injected once before the graph starts. '.port' refers to the
enclosing component's own boundary port and is only legal inside a body.
*/
package dsl
