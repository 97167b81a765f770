package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
)

// Minimal backend for exercising the gateway locally.
func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "9000"
	}

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"backend":"dummy","path":%q}`, r.URL.Path)
	})

	log.Printf("Dummy backend listening on :%s", port)
	log.Fatal(http.ListenAndServe(":"+port, nil))
}
