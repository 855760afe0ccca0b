package domain

var templates = map[Language]string{
	LangCPP:        "#include <iostream>\n\nint main() {\n    std::cout << \"Hello World\" << std::endl;\n    return 0;\n}",
	LangC:          "#include <stdio.h>\n\nint main() {\n    printf(\"Hello World\\n\");\n    return 0;\n}",
	LangJavaScript: `console.log("Hello World");`,
	LangPython:     `print("Hello World")`,
	LangJava:       "public class Main {\n    public static void main(String[] args) {\n        System.out.println(\"Hello World\");\n    }\n}",
}

// Template возвращает стартовую программу для языка, "" для неизвестного.
func Template(l Language) string {
	return templates[l]
}

func Languages() []Language {
	return []Language{LangCPP, LangC, LangJavaScript, LangPython, LangJava}
}
