// Command ccompiler dumps every stage of a compilation: the token stream,
// the generated code and the symbol table.
package main

import (
	"fmt"
	"os"

	"c4vm/pkg/asm"
	"c4vm/pkg/compiler"
)

const testSource = `int x;

int main()
{
  x = 10;
  return x + 20;
}
`

func main() {
	src := testSource
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
	}

	fmt.Printf("Source:\n%s\n", src)

	tokens := compiler.Lex(src)
	fmt.Printf("Tokens (%d)\n", len(tokens))
	for _, tok := range tokens {
		fmt.Println(" ", tok)
	}
	fmt.Println()

	c := compiler.NewCompiler(src, compiler.Options{})
	prog, err := c.Compile()
	if err != nil {
		fmt.Fprintln(os.Stderr, "compile error:", err)
		os.Exit(1)
	}

	fmt.Println("Generated Code")
	fmt.Print(asm.Disassemble(prog))
	fmt.Println()
	fmt.Print(c.Symbols())
}
